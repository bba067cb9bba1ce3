package schema

import (
	"encoding/json"
	"strings"
)

// DateLayout is the on-disk format of station creation dates and snapshot dates.
const DateLayout = "2006-01-02"

// TimestampLayout is the on-disk format of snapshot update timestamps.
// Values in this layout sort correctly as plain strings.
const TimestampLayout = "2006-01-02 15:04:05"

// Station is one wastewater treatment plant record as persisted in stations.json.
type Station struct {
	ID          string      `json:"id" validate:"required,uuid4"`
	Name        string      `json:"nom" validate:"required,max=200"`
	Location    string      `json:"localisation" validate:"required,max=200"`
	NominalFlow float64     `json:"debit_nominal" validate:"gt=0"`
	ProcessType string      `json:"type_procede" validate:"required"`
	Destination Destination `json:"destination" validate:"required,destination"`
	CreatedAt   string      `json:"date_creation" validate:"required,datetime=2006-01-02"`

	// LegacyEquipment is only found in records written before state history
	// existed. Migration moves it into a first snapshot and drops it.
	LegacyEquipment json.RawMessage `json:"ouvrages,omitempty" validate:"-"`
}

// Destination is where a station's treated water goes.
type Destination string

const (
	DestinationNaturalEnv      Destination = "Milieu naturel"
	DestinationDischarge       Destination = "Rejet"
	DestinationIrrigationFarm  Destination = "Irrigation agricole"
	DestinationIrrigationGreen Destination = "Irrigation des espaces verts"
	DestinationReuse           Destination = "Réutilisation"
	DestinationIndustry        Destination = "Industrie"
	DestinationOther           Destination = "Autre"
)

// DestinationCategory groups destinations for styling and filtering.
type DestinationCategory string

const (
	CategoryDischarge  DestinationCategory = "discharge"
	CategoryIrrigation DestinationCategory = "irrigation"
	CategoryReuse      DestinationCategory = "reuse"
	CategoryIndustry   DestinationCategory = "industry"
	CategoryOther      DestinationCategory = "other"
)

// Destinations lists the values offered when creating a station, in menu order.
var Destinations = []Destination{
	DestinationNaturalEnv,
	DestinationIrrigationFarm,
	DestinationIrrigationGreen,
	DestinationReuse,
	DestinationIndustry,
	DestinationOther,
}

// Valid reports whether d is a known destination. Rejet is accepted for older records.
func (d Destination) Valid() bool {
	if d == DestinationDischarge {
		return true
	}
	for _, known := range Destinations {
		if d == known {
			return true
		}
	}
	return false
}

// Category maps the destination to its category.
func (d Destination) Category() DestinationCategory {
	switch d {
	case DestinationNaturalEnv, DestinationDischarge:
		return CategoryDischarge
	case DestinationReuse:
		return CategoryReuse
	case DestinationIndustry:
		return CategoryIndustry
	}
	if strings.HasPrefix(string(d), "Irrigation") {
		return CategoryIrrigation
	}
	return CategoryOther
}
