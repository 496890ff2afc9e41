package models

import "time"

// School is one SMS-connected school. A cohortid of 0 means the school
// has not been linked to a cohort yet.
type School struct {
	ID           int64
	SchoolNo     int64
	Name         string
	MoeID        string
	CohortID     int64
	SMSID        int64
	TransferIn   bool
	TransferOut  bool
	Suspend      bool
	TimeCreated  time.Time
	TimeModified time.Time
}

// VendorConfig holds the API credentials and endpoints for one SMS vendor.
// URL1 is the token endpoint, URL2 the users endpoint, URL3 the groups endpoint.
type VendorConfig struct {
	ID     int64
	Name   string // "edge" or "etap"
	Key    string
	Secret string
	URL1   string
	URL2   string
	URL3   string
}

// GroupLink records that an internal group belongs to an SMS school.
type GroupLink struct {
	ID       int64
	SchoolID int64
	GroupID  int64
}

type Group struct {
	ID       int64
	CourseID int64
	Name     string
	IDNumber string
}

type Cohort struct {
	ID   int64
	Name string
}
