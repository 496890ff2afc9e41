package sms

import (
	"context"
	"strings"

	"github.com/kauri-edtech/smssync/internal/models"
)

// NSNVariants returns the identifier spellings a student may be stored
// under: as given, with the leading zeros stripped, and zero-prefixed.
// Vendors disagree about whether NSNs keep their leading zero.
func NSNVariants(nsn string) []string {
	variants := []string{nsn}
	if stripped := strings.TrimLeft(nsn, "0"); stripped != nsn && stripped != "" {
		variants = append(variants, stripped)
	}
	if !strings.HasPrefix(nsn, "0") {
		variants = append(variants, "0"+nsn)
	}
	return variants
}

// IdentityMatch is the outcome of resolving an NSN against existing users.
type IdentityMatch struct {
	// User is the canonical account: the last retrieved match, or nil
	// when no account exists yet.
	User *models.User
	// Removed lists duplicate accounts that were deleted so the
	// identifier resolves to a single user again.
	Removed []int64
}

// MatchIdentity finds the existing account for an NSN. When vendor data
// has produced duplicate accounts over time, the most recent one is kept
// and the rest are deleted.
func MatchIdentity(ctx context.Context, store UserStore, nsn string) (*IdentityMatch, error) {
	records, err := store.UsersByIDNumbers(ctx, NSNVariants(nsn))
	if err != nil {
		return nil, err
	}
	m := &IdentityMatch{}
	for i := range records {
		if i == len(records)-1 {
			u := records[i]
			m.User = &u
			break
		}
		if err := store.DeleteUser(ctx, records[i].ID); err != nil {
			return nil, err
		}
		m.Removed = append(m.Removed, records[i].ID)
	}
	return m, nil
}
