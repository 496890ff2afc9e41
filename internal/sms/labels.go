package sms

import "strings"

// ProfileFieldPrefix namespaces user profile fields in vendor payloads and
// in the profile store ("profile_field_room" etc).
const ProfileFieldPrefix = "profile_field_"

// FieldNSN is the canonical key for the national student number.
const FieldNSN = "national student number"

// Required canonical fields for every parsed record.
var requiredFields = []string{"firstname", "surname", FieldNSN}

// profileFields are the canonical keys that get re-prefixed with
// ProfileFieldPrefix after synonym resolution.
var profileFields = map[string]bool{
	"dob":       true,
	"ethnicity": true,
	"year":      true,
	"room":      true,
	"gender":    true,
}

var labelSynonyms = map[string]string{
	"lastname":        "surname",
	"date of birth":   "dob",
	"dateofbirth":     "dob",
	"suspend":         "suspended",
	"nsn":             FieldNSN,
	"studentnsn":      FieldNSN,
	"groupmembership": "year",
	"homegroup":       "room",
}

// NormalizeLabel maps a raw vendor field label to its canonical key.
// Edge prefixes labels with "profile_field_", etap with "mlep"; both are
// stripped before the synonym table is applied and profile-type fields are
// re-prefixed. The function is pure and idempotent: a canonical key passes
// through unchanged.
func NormalizeLabel(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = strings.ReplaceAll(h, ProfileFieldPrefix, "")
	h = strings.ReplaceAll(h, "mlep", "")
	if s, ok := labelSynonyms[h]; ok {
		h = s
	}
	if profileFields[h] {
		h = ProfileFieldPrefix + h
	}
	return h
}

// TrimProfilePrefix returns the bare field name of a profile field key.
func TrimProfilePrefix(label string) string {
	return strings.TrimPrefix(label, ProfileFieldPrefix)
}

// IsProfileField reports whether the canonical label names a profile field.
func IsProfileField(label string) bool {
	return strings.HasPrefix(label, ProfileFieldPrefix)
}
