package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"firstname":           "firstname",
		" Firstname ":         "firstname",
		"LastName":            "surname",
		"surname":             "surname",
		"NSN":                 FieldNSN,
		"studentNSN":          FieldNSN,
		"mlepStudentNSN":      FieldNSN,
		"profile_field_dob":   "profile_field_dob",
		"Date of Birth":       "profile_field_dob",
		"mlepDateOfBirth":     "profile_field_dob",
		"GroupMembership":     "profile_field_year",
		"mlepGroupMembership": "profile_field_year",
		"HomeGroup":           "profile_field_room",
		"mlepHomeGroup":       "profile_field_room",
		"Gender":              "profile_field_gender",
		"Ethnicity":           "profile_field_ethnicity",
		"Suspend":             "suspended",
		"something else":      "something else",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeLabel(raw), "raw %q", raw)
	}
}

func TestNormalizeLabelIdempotent(t *testing.T) {
	for _, raw := range []string{
		"mlepHomeGroup", "Date of Birth", "NSN", "firstname", "Gender",
	} {
		once := NormalizeLabel(raw)
		assert.Equal(t, once, NormalizeLabel(once), "raw %q", raw)
	}
}
