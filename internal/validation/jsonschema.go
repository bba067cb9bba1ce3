package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/stationflow/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	catalogSchemaURL  = "https://stationflow.dev/schemas/catalog.json"
	stationsSchemaURL = "https://stationflow.dev/schemas/stations.json"
)

// catalogSchemaJSON describes the process-type catalog. Stages may be a list of
// names or a mapping of name to default state.
const catalogSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://stationflow.dev/schemas/catalog.json",
  "type": "object",
  "additionalProperties": { "$ref": "#/$defs/process_type" },
  "$defs": {
    "stage": {
      "oneOf": [
        { "type": "array", "items": { "type": "string", "minLength": 1 } },
        { "type": "object", "additionalProperties": { "type": "string" } }
      ]
    },
    "sludge_branch": {
      "type": "object",
      "required": ["source", "destination"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "destination": { "type": "string", "minLength": 1 },
        "etiquette": { "type": "string" }
      }
    },
    "process_type": {
      "type": "object",
      "properties": {
        "nom": { "type": "string" },
        "description": { "type": "string" },
        "filiere_eau": {
          "type": "object",
          "properties": {
            "pretraitement": { "$ref": "#/$defs/stage" },
            "traitement_primaire": { "$ref": "#/$defs/stage" },
            "traitement_secondaire": { "$ref": "#/$defs/stage" },
            "traitement_tertiaire": { "$ref": "#/$defs/stage" },
            "boues_primaires": { "$ref": "#/$defs/sludge_branch" },
            "boues_secondaires": { "$ref": "#/$defs/sludge_branch" }
          }
        },
        "pretraitement": { "$ref": "#/$defs/stage" },
        "traitement_primaire": { "$ref": "#/$defs/stage" },
        "traitement_secondaire": { "$ref": "#/$defs/stage" },
        "traitement_tertiaire": { "$ref": "#/$defs/stage" },
        "filiere_boue": { "$ref": "#/$defs/stage" }
      }
    }
  }
}`

// stationsSchemaJSON describes stations.json.
const stationsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://stationflow.dev/schemas/stations.json",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "nom", "type_procede"],
    "properties": {
      "id": { "type": "string", "minLength": 1 },
      "nom": { "type": "string", "minLength": 1 },
      "localisation": { "type": "string" },
      "debit_nominal": { "type": "number", "exclusiveMinimum": 0 },
      "type_procede": { "type": "string", "minLength": 1 },
      "destination": { "type": "string" },
      "date_creation": { "type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$" }
    }
  }
}`

// JSONSchemaValidator checks raw documents against the embedded schemas.
// It is safe for concurrent use: compiled schemas are immutable.
type JSONSchemaValidator struct {
	catalogSchema  *jsonschema.Schema
	stationsSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded schemas.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for url, src := range map[string]string{
		catalogSchemaURL:  catalogSchemaJSON,
		stationsSchemaURL: stationsSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}

	catalog, err := c.Compile(catalogSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	stations, err := c.Compile(stationsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile stations schema: %w", err)
	}

	return &JSONSchemaValidator{catalogSchema: catalog, stationsSchema: stations}, nil
}

// ValidateCatalog checks a decoded catalog document.
func (v *JSONSchemaValidator) ValidateCatalog(doc any) *schema.Report {
	return check(v.catalogSchema, doc)
}

// ValidateStations checks a decoded stations document.
func (v *JSONSchemaValidator) ValidateStations(doc any) *schema.Report {
	return check(v.stationsSchema, doc)
}

// check reports every violation as a data-quality warning.
func check(s *jsonschema.Schema, doc any) *schema.Report {
	res := &schema.Report{}
	value, err := toJSONValue(doc)
	if err != nil {
		res.Add("/", "document is not JSON-compatible: "+err.Error())
		return res
	}
	if err := s.Validate(value); err != nil {
		for _, issue := range collectViolations(err) {
			res.Add(issue.Path, issue.Message)
		}
	}
	return res
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(err error) []schema.Issue {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []schema.Issue{{Path: "/", Message: err.Error()}}
	}
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []schema.Issue{{Path: loc, Message: verr.Error()}}
	}

	var issues []schema.Issue
	for _, cause := range verr.Causes {
		issues = append(issues, collectViolations(cause)...)
	}
	return issues
}
