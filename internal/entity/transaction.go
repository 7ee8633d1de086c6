package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction is one normalized property-registration record as persisted
// and returned by the API. A nil date means the source date could not be parsed.
type Transaction struct {
	ID                 uuid.UUID       `json:"id"`
	Profile            string          `json:"profile"`
	SerialNumber       string          `json:"srNo"`
	DocumentNumber     string          `json:"documentNumber"`
	ExecutionDate      *time.Time      `json:"executionDate"`
	PresentationDate   *time.Time      `json:"presentationDate"`
	RegistrationDate   *time.Time      `json:"registrationDate"`
	Nature             string          `json:"nature"`
	Buyers             []string        `json:"buyer"`
	Sellers            []string        `json:"seller"`
	VolumePage         string          `json:"volPageNo"`
	ConsiderationValue float64         `json:"considerationValue"`
	MarketValue        float64         `json:"marketValue"`
	PRNumbers          []string        `json:"prNumber"`
	DocumentRemarks    string          `json:"documentRemarks"`
	PropertyType       string          `json:"propertyType"`
	PropertyExtent     string          `json:"propertyExtent"`
	Village            string          `json:"village"`
	Street             string          `json:"street"`
	SurveyNumbers      []string        `json:"surveyNumber"`
	PlotNumber         string          `json:"plotNumber"`
	ScheduleRemarks    string          `json:"remarks"`
	SourceFile         string          `json:"sourceFile,omitempty"`
	SourceSHA256       string          `json:"sourceSha256,omitempty"`
	OriginalData       json.RawMessage `json:"originalData,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}
