// Package extract turns document text into untrusted transaction records via the model.
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

// DroppedRecord is a reply element that failed schema validation even after repair.
type DroppedRecord struct {
	Index int
	Err   error
}

// Batch is the outcome of one extraction call.
type Batch struct {
	Records   []RawTransaction
	Dropped   []DroppedRecord
	Sanitized int // records that validated only after repair
}

type Extractor struct {
	gen     llm.Generator
	prompts *llm.Prompts
	schema  *llm.SchemaValidator
	logger  *zap.Logger
}

func NewExtractor(gen llm.Generator, prompts *llm.Prompts, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := llm.CompileSchema(llm.BuildRecordSchema(prompts.Fields()))
	if err != nil {
		return nil, fmt.Errorf("record schema: %w", err)
	}
	return &Extractor{gen: gen, prompts: prompts, schema: schema, logger: logger}, nil
}

// CleanEnabled reports whether the profile runs the cleaning pass.
func (e *Extractor) CleanEnabled() bool {
	return e.prompts.HasClean()
}

// Clean asks the model to strip layout noise and translate the chunk. On any
// failure the original text is returned together with the error, so callers can
// continue with raw text and record the fault.
func (e *Extractor) Clean(ctx context.Context, text string) (string, error) {
	prompt, err := e.prompts.Clean(text)
	if err != nil {
		return text, err
	}
	reply, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return text, fmt.Errorf("clean: %w", err)
	}
	cleaned := strings.TrimSpace(llm.StripCodeFences(reply))
	if cleaned == "" {
		return text, fmt.Errorf("clean: %w", llm.ErrEmptyReply)
	}
	return cleaned, nil
}

// Extract issues one model call for text and parses the reply. A call or parse
// failure yields an empty batch and an error; it never affects other chunks.
func (e *Extractor) Extract(ctx context.Context, text string) (Batch, error) {
	log := common.LoggerFromContext(ctx, e.logger)

	prompt, err := e.prompts.Extract(text)
	if err != nil {
		return Batch{}, err
	}
	reply, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return Batch{}, fmt.Errorf("extract: %w", err)
	}

	items, err := llm.DecodeRecords(reply)
	if err != nil {
		llm.Forget(ctx, e.gen, prompt)
		log.Warn("extract.reply.unparseable",
			zap.Int("reply_len", len(reply)),
			zap.String("reply_head", head(reply, 200)),
			zap.Error(err))
		return Batch{}, fmt.Errorf("extract: %w", err)
	}

	var batch Batch
	for i, item := range items {
		rec, sanitized, err := e.validate(item)
		if err != nil {
			log.Warn("extract.record.invalid", zap.Int("index", i), zap.Error(err))
			batch.Dropped = append(batch.Dropped, DroppedRecord{Index: i, Err: err})
			continue
		}
		if sanitized {
			batch.Sanitized++
		}
		batch.Records = append(batch.Records, NewRawTransaction(rec))
	}

	log.Debug("extract.chunk.ok",
		zap.Int("records", len(batch.Records)),
		zap.Int("dropped", len(batch.Dropped)),
		zap.Int("sanitized", batch.Sanitized))
	return batch, nil
}

// validate checks one reply element. Invalid objects are sanitized, then
// stripped of the fields that still fail, before being dropped.
func (e *Extractor) validate(item any) (map[string]any, bool, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("record is %T, not an object", item)
	}
	if err := e.schema.Validate(obj); err == nil {
		return obj, false, nil
	}
	fixed, changed := llm.SanitizeRecord(obj, e.prompts.Fields())
	if err := e.schema.Validate(fixed); err == nil {
		e.logger.Debug("extract.record.sanitized", zap.Strings("fields", changed))
		return fixed, true, nil
	}
	pruned, removed := llm.PruneInvalid(fixed, e.prompts.Fields(), e.schema)
	if err := e.schema.Validate(pruned); err != nil {
		return nil, false, err
	}
	e.logger.Debug("extract.record.pruned", zap.Strings("sanitized", changed), zap.Strings("removed", removed))
	return pruned, true, nil
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
