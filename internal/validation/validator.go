package validation

import "github.com/rendis/stationflow/pkg/schema"

// Validator checks documents read from disk and records typed by the operator.
// Document checks report data-quality issues and never reject the document;
// the loaders decide how to recover.
type Validator interface {
	ValidateCatalog(doc any) *schema.Report
	ValidateStations(doc any) *schema.Report
	ValidateStation(st *schema.Station) error
}

// New returns the default Validator.
func New() (Validator, error) {
	js, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &combined{JSONSchemaValidator: js}, nil
}

type combined struct {
	*JSONSchemaValidator
}

func (c *combined) ValidateStation(st *schema.Station) error {
	return ValidateStation(st)
}
