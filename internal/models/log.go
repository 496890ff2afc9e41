package models

import "time"

// Log targets and actions match what the audit views expect.
const (
	TargetUser   = "user"
	TargetSchool = "school"
	TargetGroup  = "group"

	ActionCreate = "created"
	ActionUpdate = "updated"
	ActionDelete = "deleted"
	ActionSync   = "sync"

	OriginCron = "cron"
	OriginWeb  = "web"
)

// LogEntry is one append-only audit record: one per meaningful state
// change plus one summary per school per run. Info holds a structured
// payload serialized to JSON on insert.
type LogEntry struct {
	ID          int64
	SchoolNo    int64
	Target      string
	Action      string
	Error       string
	Other       string
	Info        map[string]any
	Origin      string
	IP          string
	UserID      int64
	TimeCreated time.Time
}

// WithInfo sets a key in the structured payload, allocating on first use.
func (e *LogEntry) WithInfo(key string, value any) {
	if e.Info == nil {
		e.Info = make(map[string]any)
	}
	e.Info[key] = value
}
