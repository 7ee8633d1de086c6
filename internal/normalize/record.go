package normalize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/extract"
)

// Issue is a field that was defaulted during normalization.
type Issue struct {
	Field string
	Err   error
}

// Transaction maps one raw record to its typed form. Fields that could not be
// read take their defaults and are reported as issues. ID, Profile, source and
// timestamps are left for the caller.
func (n *Normalizer) Transaction(ctx context.Context, raw extract.RawTransaction) (*entity.Transaction, []Issue) {
	var issues []Issue
	note := func(field string, err error) {
		if err != nil {
			issues = append(issues, Issue{Field: field, Err: err})
		}
	}

	tx := &entity.Transaction{
		SerialNumber:    raw.String(extract.KeySerial),
		DocumentNumber:  raw.DocumentNumber(),
		Nature:          raw.String(extract.KeyNature),
		VolumePage:      raw.String(extract.KeyVolPage),
		PRNumbers:       raw.List(extract.KeyPRNumber),
		DocumentRemarks: raw.String(extract.KeyDocumentRemarks),
		PropertyType:    raw.String(extract.KeyPropertyType),
		PropertyExtent:  raw.String(extract.KeyPropertyExtent),
		SurveyNumbers:   raw.List(extract.KeySurveyNo),
		PlotNumber:      raw.String(extract.KeyPlotNo),
		ScheduleRemarks: raw.String(extract.KeyScheduleRemarks),
	}
	tx.Village, tx.Street = raw.VillageStreet()

	dates := raw.Dates()
	for _, d := range []struct {
		field string
		raw   string
		dst   **time.Time
	}{
		{"executionDate", dates.Execution, &tx.ExecutionDate},
		{"presentationDate", dates.Presentation, &tx.PresentationDate},
		{"registrationDate", dates.Registration, &tx.RegistrationDate},
	} {
		t, err := n.Date(ctx, d.raw)
		note(d.field, err)
		if IsValidDate(t) {
			*d.dst = &t
		}
	}

	var err error
	tx.ConsiderationValue, err = n.Value(ctx, raw.Get(extract.KeyConsiderationValue))
	note(extract.KeyConsiderationValue, err)
	tx.MarketValue, err = n.Value(ctx, raw.Get(extract.KeyMarketValue))
	note(extract.KeyMarketValue, err)

	tx.Buyers, tx.Sellers, err = n.Names(ctx, raw.Get(extract.KeyExecutants), raw.Get(extract.KeyClaimants))
	note("names", err)

	original, err := json.Marshal(raw)
	note("originalData", err)
	if err == nil {
		tx.OriginalData = original
	}
	return tx, issues
}
