package models

// Patient represents an admitted or registered patient
type Patient struct {
	ID          string `json:"id" db:"id" validate:"required,max=64"`
	Name        string `json:"name" db:"name" validate:"required,max=120"`
	Disease     string `json:"disease" db:"disease" validate:"max=120"`
	Sex         string `json:"sex" db:"sex" validate:"max=16"`
	AdmitStatus string `json:"admit_status" db:"admit_status" validate:"max=32"`
	Age         int    `json:"age" db:"age" validate:"gte=0,lte=200"`
}

// TableName returns the table name for the Patient model
func (Patient) TableName() string { return TablePatient }

func (p *Patient) EntityID() string { return p.ID }

func (p *Patient) Columns() []string {
	return []string{"id", "name", "disease", "sex", "admit_status", "age"}
}

func (p *Patient) Values() []interface{} {
	return []interface{}{p.ID, p.Name, p.Disease, p.Sex, p.AdmitStatus, p.Age}
}

func (p *Patient) ScanTargets() []interface{} {
	return []interface{}{&p.ID, &p.Name, &p.Disease, &p.Sex, &p.AdmitStatus, &p.Age}
}

// Doctor represents a member of the medical staff
type Doctor struct {
	ID            string `json:"id" db:"id" validate:"required,max=64"`
	Name          string `json:"name" db:"name" validate:"required,max=120"`
	Specialist    string `json:"specialist" db:"specialist" validate:"max=120"`
	WorkTime      string `json:"work_time" db:"work_time" validate:"max=64"`
	Qualification string `json:"qualification" db:"qualification" validate:"max=120"`
	Room          int    `json:"room" db:"room" validate:"gte=0"`
}

// TableName returns the table name for the Doctor model
func (Doctor) TableName() string { return TableDoctor }

func (d *Doctor) EntityID() string { return d.ID }

func (d *Doctor) Columns() []string {
	return []string{"id", "name", "specialist", "work_time", "qualification", "room"}
}

func (d *Doctor) Values() []interface{} {
	return []interface{}{d.ID, d.Name, d.Specialist, d.WorkTime, d.Qualification, d.Room}
}

func (d *Doctor) ScanTargets() []interface{} {
	return []interface{}{&d.ID, &d.Name, &d.Specialist, &d.WorkTime, &d.Qualification, &d.Room}
}

// Staff represents non-medical hospital personnel
type Staff struct {
	ID          string `json:"id" db:"id" validate:"required,max=64"`
	Name        string `json:"name" db:"name" validate:"required,max=120"`
	Designation string `json:"designation" db:"designation" validate:"max=120"`
	Sex         string `json:"sex" db:"sex" validate:"max=16"`
	Salary      int    `json:"salary" db:"salary" validate:"gte=0"`
}

// TableName returns the table name for the Staff model
func (Staff) TableName() string { return TableStaff }

func (s *Staff) EntityID() string { return s.ID }

func (s *Staff) Columns() []string {
	return []string{"id", "name", "designation", "sex", "salary"}
}

func (s *Staff) Values() []interface{} {
	return []interface{}{s.ID, s.Name, s.Designation, s.Sex, s.Salary}
}

func (s *Staff) ScanTargets() []interface{} {
	return []interface{}{&s.ID, &s.Name, &s.Designation, &s.Sex, &s.Salary}
}
