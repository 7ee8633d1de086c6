package normalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/extract"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

// Names asks the model once for cleaned buyer and seller lists. Without a
// model, or when the reply cannot be used, each raw value passes through as a
// list: arrays as-is, a scalar as one element. The returned error reports a
// failed model call or reply; the lists are always usable.
func (n *Normalizer) Names(ctx context.Context, buyers, sellers any) ([]string, []string, error) {
	rawBuyers, rawSellers := extract.Strings(buyers), extract.Strings(sellers)
	if len(rawBuyers) == 0 && len(rawSellers) == 0 {
		return rawBuyers, rawSellers, nil
	}
	if !n.canAsk(n.prompts.HasNames) {
		return rawBuyers, rawSellers, nil
	}

	var obj map[string]any
	err := n.ask(ctx, "names", func() (string, error) {
		return n.prompts.Names(extract.Text(buyers), extract.Text(sellers))
	}, func(reply string) (err error) {
		obj, err = llm.DecodeObject(reply)
		return err
	})
	if err != nil {
		return rawBuyers, rawSellers, err
	}

	outBuyers, outSellers := rawBuyers, rawSellers
	if v, ok := obj["buyer"]; ok {
		outBuyers = extract.Strings(v)
	}
	if v, ok := obj["seller"]; ok {
		outSellers = extract.Strings(v)
	}
	n.logger.Debug("normalize.names.ok",
		zap.Int("buyers", len(outBuyers)),
		zap.Int("sellers", len(outSellers)))
	return outBuyers, outSellers, nil
}
