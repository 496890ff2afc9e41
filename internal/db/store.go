package db

import "database/sql"

// Store implements sms.Store on Postgres. Methods are grouped by concern
// into schools.go, users.go, groups.go, memberships.go and logs.go.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}
