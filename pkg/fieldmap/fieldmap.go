// Package fieldmap resolves the per-tenant CRM custom-field schema. Every CRM
// account names its custom fields differently, so the ids used in payloads are
// injected rather than hardcoded.
package fieldmap

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldMap holds the CRM custom-field ids for one tenant. Optional fields may
// be empty; payload builders skip them.
type FieldMap struct {
	// People fields
	LeadSource      string `validate:"required"`
	OrdersLink      string `validate:"required"`
	CustomerSegment string `validate:"required"`
	CustomerNum     string

	// Project fields
	Start          string `validate:"required"`
	Value          string `validate:"required"`
	CustomerLink   string `validate:"required"`
	Amount         string `validate:"required"`
	Manufacturers  string `validate:"required"`
	PlannedStart   string
	OrderNum       string `validate:"required"`
	ProjectSegment string `validate:"required"`
}

var presets = map[string]FieldMap{
	"nerevu": {
		LeadSource:      "lead-source",
		OrdersLink:      "orders",
		CustomerSegment: "custom7",
		Start:           "project.start",
		Value:           "value",
		CustomerLink:    "customer",
		Amount:          "amount",
		Manufacturers:   "manufacturers",
		PlannedStart:    "planned-start",
		OrderNum:        "order",
		ProjectSegment:  "project4",
	},
	"alegna": {
		LeadSource:      "lead-source",
		OrdersLink:      "orders",
		CustomerSegment: "customer",
		CustomerNum:     "customer",
		Start:           "project.start",
		Value:           "value",
		CustomerLink:    "linked-customer",
		Amount:          "win-amount",
		Manufacturers:   "manufacturer",
		OrderNum:        "order",
		ProjectSegment:  "project1",
	},
}

var validate = validator.New()

// ForAccount returns the validated field map for a known CRM account id.
func ForAccount(accountID string) (FieldMap, error) {
	fm, ok := presets[accountID]
	if !ok {
		return FieldMap{}, fmt.Errorf("unknown CRM account id: %q", accountID)
	}
	if err := fm.Validate(); err != nil {
		return FieldMap{}, err
	}
	return fm, nil
}

// Validate checks that every required field id is present.
func (fm FieldMap) Validate() error {
	if err := validate.Struct(fm); err != nil {
		return fmt.Errorf("invalid field map: %w", err)
	}
	return nil
}
