package schema

// Journal operation kinds recorded for every mutating station operation.
const (
	OpStationCreated  = "station_created"
	OpStationDeleted  = "station_deleted"
	OpSnapshotAdded   = "snapshot_added"
	OpStatesMigrated  = "states_migrated"
	OpBackupCreated   = "backup_created"
	OpStationsCleaned = "stations_cleaned"
)
