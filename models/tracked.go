package models

import "sort"

// TrackedEntity is a row of a table whose writes are captured into the
// audit log. Columns, Values and ScanTargets line up index for index and
// the primary key column comes first.
type TrackedEntity interface {
	TableName() string
	EntityID() string
	Columns() []string
	Values() []interface{}
	ScanTargets() []interface{}
}

// Tracked table names
const (
	TablePatient  = "patient"
	TableDoctor   = "doctor"
	TableStaff    = "staff"
	TableMedical  = "medical"
	TableFacility = "facility"
	TableLab      = "lab"
)

var trackedTables = map[string]func() TrackedEntity{
	TablePatient:  func() TrackedEntity { return &Patient{} },
	TableDoctor:   func() TrackedEntity { return &Doctor{} },
	TableStaff:    func() TrackedEntity { return &Staff{} },
	TableMedical:  func() TrackedEntity { return &Medical{} },
	TableFacility: func() TrackedEntity { return &Facility{} },
	TableLab:      func() TrackedEntity { return &Lab{} },
}

// IsTrackedTable reports whether writes to name are audited
func IsTrackedTable(name string) bool {
	_, ok := trackedTables[name]
	return ok
}

// TrackedTables returns the tracked table names sorted
func TrackedTables() []string {
	names := make([]string, 0, len(trackedTables))
	for name := range trackedTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTrackedEntity returns an empty entity for table, or false if the
// table is not tracked.
func NewTrackedEntity(table string) (TrackedEntity, bool) {
	fn, ok := trackedTables[table]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// SnapshotOf captures every column of e in column order
func SnapshotOf(e TrackedEntity) (Snapshot, error) {
	return NewSnapshot(e.Columns(), e.Values())
}
