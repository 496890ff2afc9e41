package sms

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kauri-edtech/smssync/internal/models"
)

// FindGroup resolves a vendor room label against the vendor's current
// group list and returns the matching internal group, or nil when the room
// is unknown. Both sides are compared after whitespace removal and
// diacritics stripping; the internal lookup is by idnumber scoped to the
// school's own link set.
func FindGroup(ctx context.Context, store GroupStore, school *models.School, room string, vendorGroups map[string]string) (*models.Group, error) {
	want := foldGroupName(room)
	for gidnumber, name := range vendorGroups {
		if foldGroupName(name) == want {
			return store.GroupBySchoolIDNumber(ctx, school.ID, gidnumber)
		}
	}
	return nil, nil
}

// foldGroupName removes whitespace and diacritics. Comparison stays
// case-sensitive: vendors are consistent about casing but not about
// macrons or spacing.
func foldGroupName(s string) string {
	return stripDiacritics(strings.ReplaceAll(s, " ", ""))
}

// stripDiacritics decomposes to NFD and drops combining marks, so that
// "Kōwhai" and "Kowhai" compare equal.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
