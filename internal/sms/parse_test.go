package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kauri-edtech/smssync/internal/models"
)

var testProfileFields = []string{"room", "year", "gender", "ethnicity", "dob"}

func TestParseCSV(t *testing.T) {
	payload := []byte("Firstname,Surname,NSN,mlepHomeGroup,mlepGroupMembership,Gender,DOB\r\n" +
		"Aroha,  Smith ,0012345,Kea,Room2#Y6,F,25/03/2011\r\n" +
		"Ben,Jones,0067890,Tui,Year 5,M,2012-06-01\n")

	students, err := ParseRecords(payload, ParseOptions{
		Format:        FormatCSV,
		Source:        models.OriginWeb,
		ProfileFields: testProfileFields,
	})
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "Aroha", students[0].FirstName)
	assert.Equal(t, "Smith", students[0].Surname)
	assert.Equal(t, "0012345", students[0].NSN)
	assert.Equal(t, "Kea", students[0].Room)
	assert.Equal(t, "y6", students[0].Year)
	assert.Equal(t, "F", students[0].Gender)
	assert.Equal(t, "25/03/2011", students[0].DOB)

	// No space-free year token, so the combined field yields nothing.
	assert.Equal(t, "", students[1].Year)
}

func TestParseCSVDelimiterAndEncoding(t *testing.T) {
	// "José" in ISO-8859-1: é is 0xE9.
	payload := []byte("Firstname;Surname;NSN\nJos\xe9;P\xe9rez;123\n")

	students, err := ParseRecords(payload, ParseOptions{
		Format:    FormatCSV,
		Delimiter: "semicolon",
		Encoding:  "ISO-8859-1",
		Source:    models.OriginCron,
	})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "José", students[0].FirstName)
	assert.Equal(t, "Pérez", students[0].Surname)
}

func TestParseCSVRequiredFieldsWebOnly(t *testing.T) {
	payload := []byte("Firstname,Surname\nAroha,Smith\n")

	_, err := ParseRecords(payload, ParseOptions{Format: FormatCSV, Source: models.OriginWeb})
	var rf *RequiredFieldError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, FieldNSN, rf.Field)

	// The scheduled path tolerates the same header.
	students, err := ParseRecords(payload, ParseOptions{Format: FormatCSV, Source: models.OriginCron})
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestParseCSVStructuralErrors(t *testing.T) {
	_, err := ParseRecords(nil, ParseOptions{Format: FormatCSV, Source: models.OriginWeb})
	assert.ErrorIs(t, err, ErrCSVEmpty)

	_, err = ParseRecords([]byte("Firstname,Surname,NSN\n"), ParseOptions{Format: FormatCSV, Source: models.OriginWeb})
	assert.ErrorIs(t, err, ErrCSVHeaderOnly)

	// Cron path: same payloads, no error, no records.
	students, err := ParseRecords(nil, ParseOptions{Format: FormatCSV, Source: models.OriginCron})
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestParseJSON(t *testing.T) {
	payload := []byte(`[
		{"Firstname":"Aroha","Surname":"Smith","NSN":12345,"profile_field_room":"Kea","Gender":"Female"},
		{"Firstname":"Ben","Surname":"Jones","NSN":"67890","profile_field_room":"Tui","Unknown":"dropped"}
	]`)

	students, err := ParseRecords(payload, ParseOptions{
		Format:        FormatJSON,
		Source:        models.OriginCron,
		ProfileFields: testProfileFields,
	})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "12345", students[0].NSN)
	assert.Equal(t, "Kea", students[0].Room)
	assert.Equal(t, "Female", students[0].Gender)
	assert.Equal(t, "67890", students[1].NSN)
	assert.Empty(t, students[1].Extra["unknown"])
}

func TestExtractYearToken(t *testing.T) {
	cases := map[string]string{
		"Room2#Y6":    "y6",
		"Y5#Y6":       "y6", // last match wins
		"Kea#Year 12": "",   // spaced token is not a year designator
		"7":           "",   // no year token at all
		"Year 5":      "",
		"Room#Math":   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, extractYearToken(in), "input %q", in)
	}
}
