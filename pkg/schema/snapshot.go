package schema

// Snapshot is a timestamped record of every equipment unit's state for one station.
type Snapshot struct {
	StationID   string           `json:"station_id"`
	StationName string           `json:"station_nom,omitempty"`
	Date        string           `json:"date,omitempty"`
	UpdatedAt   string           `json:"date_maj"`
	States      *EquipmentStates `json:"etat_ouvrages"`
}

// Clone returns a copy whose States can be edited independently.
func (s Snapshot) Clone() Snapshot {
	s.States = s.States.Clone()
	return s
}
