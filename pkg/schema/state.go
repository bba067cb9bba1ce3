package schema

import (
	"encoding/json"
	"strings"
)

// OperatingState is the condition of one piece of equipment in a snapshot.
type OperatingState string

const (
	StateInService      OperatingState = "en_service"
	StateFailed         OperatingState = "en_panne"
	StateDegraded       OperatingState = "en_dysfonctionnement"
	StateMaintenance    OperatingState = "en_maintenance"
	StateDecommissioned OperatingState = "hors_service"
	StateNotBuilt       OperatingState = "inexistant"
	StateStopped        OperatingState = "arret_volontaire"
	StateOverloaded     OperatingState = "surcharge_sature"
	StateNew            OperatingState = "nouvel_ouvrage"
)

// DefaultState applies to any equipment absent from a snapshot.
const DefaultState = StateInService

// OperatingStates lists every state in legend order.
var OperatingStates = []OperatingState{
	StateInService,
	StateFailed,
	StateDegraded,
	StateMaintenance,
	StateDecommissioned,
	StateNotBuilt,
	StateStopped,
	StateOverloaded,
	StateNew,
}

var stateLabels = map[OperatingState]string{
	StateInService:      "En service",
	StateFailed:         "En panne",
	StateDegraded:       "En dysfonctionnement",
	StateMaintenance:    "En maintenance",
	StateDecommissioned: "Hors service",
	StateNotBuilt:       "Inexistant",
	StateStopped:        "Arrêt volontaire",
	StateOverloaded:     "Surcharge / saturé",
	StateNew:            "Nouvel ouvrage",
}

// legacyLabels are human labels written by older console revisions.
var legacyLabels = map[string]OperatingState{
	"fonctionnel":    StateInService,
	"en service":     StateInService,
	"en panne":       StateFailed,
	"en maintenance": StateMaintenance,
	"hors service":   StateDecommissioned,
	"inexistant":     StateNotBuilt,
}

// Valid reports whether s is one of the nine known states.
func (s OperatingState) Valid() bool {
	_, ok := stateLabels[s]
	return ok
}

// Label returns the display label of the state, or the raw value if unknown.
func (s OperatingState) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseOperatingState maps a stored or typed value to a state.
// Enum values and legacy labels are recognized; anything else is returned
// verbatim with ok=false so callers never lose data.
func ParseOperatingState(raw string) (OperatingState, bool) {
	v := strings.TrimSpace(raw)
	if s := OperatingState(v); s.Valid() {
		return s, true
	}
	if s, ok := legacyLabels[strings.ToLower(v)]; ok {
		return s, true
	}
	return OperatingState(v), false
}

// UnmarshalJSON accepts enum values and legacy labels.
func (s *OperatingState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s, _ = ParseOperatingState(raw)
	return nil
}
