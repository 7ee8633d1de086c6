package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Raw field names as proposed by the model. Several keys are accepted for the
// document number because profiles name it differently.
const (
	KeySerial             = "srNo"
	KeyDates              = "dates"
	KeyNature             = "nature"
	KeyExecutants         = "executants"
	KeyClaimants          = "claimants"
	KeyVolPage            = "volPageNo"
	KeyConsiderationValue = "considerationValue"
	KeyMarketValue        = "marketValue"
	KeyPRNumber           = "prNumber"
	KeyDocumentRemarks    = "documentRemarks"
	KeyPropertyType       = "propertyType"
	KeyPropertyExtent     = "propertyExtent"
	KeyVillageStreet      = "villageStreet"
	KeySurveyNo           = "surveyNo"
	KeyPlotNo             = "plotNo"
	KeyScheduleRemarks    = "scheduleRemarks"
)

var documentNumberKeys = []string{"docNoAndYear", "docNo", "documentNumber"}

// RawTransaction is one untrusted record proposed by the model. Values are
// only ever read as data.
type RawTransaction struct {
	fields map[string]any
}

// NewRawTransaction wraps a decoded JSON object.
func NewRawTransaction(fields map[string]any) RawTransaction {
	if fields == nil {
		fields = map[string]any{}
	}
	return RawTransaction{fields: fields}
}

// Get returns the raw value for key.
func (r RawTransaction) Get(key string) any {
	return r.fields[key]
}

// String returns the first non-empty scalar among keys, trimmed.
func (r RawTransaction) String(keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(Text(r.fields[k])); s != "" {
			return s
		}
	}
	return ""
}

func (r RawTransaction) DocumentNumber() string {
	return r.String(documentNumberKeys...)
}

// List returns a string slice for list-valued fields; a scalar becomes one element.
func (r RawTransaction) List(key string) []string {
	return Strings(r.fields[key])
}

// VillageStreet splits "village, street" on the first comma.
func (r RawTransaction) VillageStreet() (village, street string) {
	v, s, _ := strings.Cut(r.String(KeyVillageStreet), ",")
	return strings.TrimSpace(v), strings.TrimSpace(s)
}

// Dates holds the raw execution, presentation and registration date strings.
type Dates struct {
	Execution    string
	Presentation string
	Registration string
}

var reDateSeparator = regexp.MustCompile(`\s*[,;\n]\s*|\s+/\s+|\s+&\s+|\s+and\s+`)

// Dates reads the "dates" field. Arrays are ordered execution, presentation,
// registration; two entries are taken as execution and registration. Objects use
// executionDate/presentationDate/registrationDate keys. Strings are split on list
// separators (a bare "/" stays inside the date).
func (r RawTransaction) Dates() Dates {
	switch v := r.fields[KeyDates].(type) {
	case map[string]any:
		return Dates{
			Execution:    strings.TrimSpace(Text(v["executionDate"])),
			Presentation: strings.TrimSpace(Text(v["presentationDate"])),
			Registration: strings.TrimSpace(Text(v["registrationDate"])),
		}
	case []any:
		return datesFromParts(Strings(v))
	case nil:
		return Dates{}
	default:
		var parts []string
		for _, p := range reDateSeparator.Split(Text(v), -1) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return datesFromParts(parts)
	}
}

func datesFromParts(parts []string) Dates {
	switch len(parts) {
	case 0:
		return Dates{}
	case 1:
		return Dates{Execution: parts[0]}
	case 2:
		return Dates{Execution: parts[0], Registration: parts[1]}
	default:
		return Dates{Execution: parts[0], Presentation: parts[1], Registration: parts[2]}
	}
}

// MarshalJSON keeps the record as the model sent it.
func (r RawTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

// Text renders a scalar JSON value as a string; lists are joined with ", ".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprint(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		return strings.Join(Strings(t), ", ")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Strings flattens a list-ish value to its non-empty trimmed string items.
func Strings(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(Text(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := strings.TrimSpace(Text(v)); s != "" {
		return []string{s}
	}
	return []string{}
}
