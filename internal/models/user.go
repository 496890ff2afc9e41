package models

import "time"

// Auth types stamped on synced accounts. Accounts created by the scheduled
// import use AuthAPI, interactively uploaded ones AuthUpload. Unlinking a
// school demotes its AuthAPI accounts to AuthUpload.
const (
	AuthAPI    = "webservice"
	AuthUpload = "nologin"
)

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	IDNumber     string // NSN
	Email        string
	Auth         string
	Suspended    bool
	Deleted      bool
	TimeCreated  time.Time
	TimeModified time.Time
}

// Student is a canonical roster record produced by the record parser.
// It is transient per import batch and never persisted as-is.
type Student struct {
	FirstName string
	Surname   string
	NSN       string
	Room      string
	Year      string
	Gender    string
	Ethnicity string
	DOB       string
	Suspended bool

	// Extra carries any configured profile fields beyond the fixed ones,
	// keyed by canonical field name. Absent optional fields are simply
	// missing from the map.
	Extra map[string]string
}

// Field returns the raw value of a named canonical profile field.
func (s *Student) Field(name string) string {
	switch name {
	case "room":
		return s.Room
	case "year":
		return s.Year
	case "gender":
		return s.Gender
	case "ethnicity":
		return s.Ethnicity
	case "dob":
		return s.DOB
	default:
		return s.Extra[name]
	}
}

// SetField stores a canonical profile field value on the record.
func (s *Student) SetField(name, value string) {
	switch name {
	case "room":
		s.Room = value
	case "year":
		s.Year = value
	case "gender":
		s.Gender = value
	case "ethnicity":
		s.Ethnicity = value
	case "dob":
		s.DOB = value
	default:
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[name] = value
	}
}
