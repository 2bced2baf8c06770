package models

// Medical is a stocked medicine
type Medical struct {
	ID           string `json:"id" db:"id" validate:"required,max=64"`
	Name         string `json:"name" db:"name" validate:"required,max=120"`
	Manufacturer string `json:"manufacturer" db:"manufacturer" validate:"max=120"`
	ExpiryDate   Date   `json:"expiry_date" db:"expiry_date" validate:"required"`
	Cost         int    `json:"cost" db:"cost" validate:"gte=0"`
	Count        int    `json:"count" db:"count" validate:"gte=0"`
}

// TableName returns the table name for the Medical model
func (Medical) TableName() string { return TableMedical }

func (m *Medical) EntityID() string { return m.ID }

func (m *Medical) Columns() []string {
	return []string{"id", "name", "manufacturer", "expiry_date", "cost", "count"}
}

func (m *Medical) Values() []interface{} {
	return []interface{}{m.ID, m.Name, m.Manufacturer, m.ExpiryDate, m.Cost, m.Count}
}

func (m *Medical) ScanTargets() []interface{} {
	return []interface{}{&m.ID, &m.Name, &m.Manufacturer, &m.ExpiryDate, &m.Cost, &m.Count}
}

// Facility is a bookable hospital facility
type Facility struct {
	ID          string `json:"id" db:"id" validate:"required,max=64"`
	Name        string `json:"name" db:"name" validate:"required,max=120"`
	Description string `json:"description" db:"description" validate:"max=500"`
	Status      string `json:"status" db:"status" validate:"max=32"`
	Capacity    int    `json:"capacity" db:"capacity" validate:"gte=0"`
}

// TableName returns the table name for the Facility model
func (Facility) TableName() string { return TableFacility }

func (f *Facility) EntityID() string { return f.ID }

func (f *Facility) Columns() []string {
	return []string{"id", "name", "description", "status", "capacity"}
}

func (f *Facility) Values() []interface{} {
	return []interface{}{f.ID, f.Name, f.Description, f.Status, f.Capacity}
}

func (f *Facility) ScanTargets() []interface{} {
	return []interface{}{&f.ID, &f.Name, &f.Description, &f.Status, &f.Capacity}
}

// Lab is a laboratory test with an optional result
type Lab struct {
	ID     string  `json:"id" db:"id" validate:"required,max=64"`
	Name   string  `json:"name" db:"name" validate:"required,max=120"`
	Status string  `json:"status" db:"status" validate:"max=32"`
	Result *string `json:"result" db:"result" validate:"omitempty,max=500"`
}

// TableName returns the table name for the Lab model
func (Lab) TableName() string { return TableLab }

func (l *Lab) EntityID() string { return l.ID }

func (l *Lab) Columns() []string {
	return []string{"id", "name", "status", "result"}
}

func (l *Lab) Values() []interface{} {
	return []interface{}{l.ID, l.Name, l.Status, l.Result}
}

func (l *Lab) ScanTargets() []interface{} {
	return []interface{}{&l.ID, &l.Name, &l.Status, &l.Result}
}
