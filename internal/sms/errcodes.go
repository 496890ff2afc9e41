// Package sms implements the roster sync core: label/value mapping of
// vendor feeds into canonical student records, identity matching against
// existing accounts, group resolution and cross-school transfer
// reconciliation.
package sms

// Error codes persisted in audit log entries. These are data and
// integration errors, not programming errors: none of them aborts a batch
// beyond the scope documented on each code.
const (
	// ErrNoData: vendor returned no data, or fewer records than the
	// configured safeguard. Aborts the school's run.
	ErrNoData = "lognodata"
	// ErrNoGroups: no group list resolvable for the school. Skips the school.
	ErrNoGroups = "lognogroups"
	// ErrMapping: a field value could not be mapped; the record continues
	// with a default value.
	ErrMapping = "logmapping"
	// ErrNSNDouble: duplicate NSN within one feed; the second occurrence
	// is skipped.
	ErrNSNDouble = "lognsndouble"
	// ErrNoRegister: transfer-in blocked by the destination school.
	ErrNoRegister = "lognoregister"
	// ErrDuplicate: transfer-out blocked by the source school, or the
	// source school is unknown. The old membership is retained.
	ErrDuplicate = "logduplicate"
	// ErrSync: summary flag, at least one record in the run hit an error.
	ErrSync = "logerrorsync"
)

// helpCode returns the detail key stored alongside an error code.
func helpCode(code string) string {
	if code == "" {
		return ""
	}
	return code + "help"
}
