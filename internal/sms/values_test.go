package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testGenderOptions = []string{"Male", "Female", "Not Specified"}

func TestMapGender(t *testing.T) {
	m := &Mapper{GenderOptions: testGenderOptions}

	cases := []struct {
		in      string
		want    string
		wantErr string
	}{
		{"Male", "Male", ""},
		{"female", "Female", ""},
		{"M", "Male", ""},
		{"F", "Female", ""},
		{"Tāne", "Male", ""},
		{"Tane", "Male", ""},
		{"Wahine", "Female", ""},
		{"Wāhine", "Female", ""},
		{"Male / Tāne", "Male", ""},
		{"Female / Wahine", "Female", ""},
		{"", "Unknown", ErrMapping},
	}
	for _, tc := range cases {
		got, code := m.Map("gender", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.Equal(t, tc.wantErr, code, "input %q", tc.in)
	}
}

func TestMapGenderUnknownFallsBackToLastOption(t *testing.T) {
	m := &Mapper{GenderOptions: testGenderOptions}
	got, code := m.Map("gender", "Unrecognised / Tokens")
	assert.Equal(t, "Not Specified", got)
	assert.Empty(t, code)
}

func TestMapYear(t *testing.T) {
	m := &Mapper{}
	cases := map[string]string{
		"8":        "8",
		"13":       "13",
		"Year 8":   "8",
		"year8":    "8",
		"Y8":       "8",
		"eight":    "8",
		"thirteen": "13",
		"":         "0",
		"rubbish":  "0",
	}
	for in, want := range cases {
		got, code := m.Map("year", in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Empty(t, code, "input %q", in)
	}
}

func TestMapDOB(t *testing.T) {
	m := &Mapper{}

	for _, in := range []string{
		"2011-03-25", "25-03-2011", "25/03/2011", "25.03.2011", "25/03/11", "25 Mar 2011",
	} {
		got, code := m.Map("dob", in)
		assert.Equal(t, "2011-03-25", got, "input %q", in)
		assert.Empty(t, code, "input %q", in)
	}

	got, code := m.Map("dob", "not a date")
	assert.Equal(t, "0", got)
	assert.Equal(t, ErrMapping, code)
}

func TestMapEthnicity(t *testing.T) {
	m := &Mapper{}

	got, code := m.Map("ethnicity", "")
	assert.Equal(t, "Unknown", got)
	assert.Empty(t, code)

	got, code = m.Map("ethnicity", "NZ Maori")
	assert.Equal(t, "NZ Maori", got)
	assert.Empty(t, code)
}
