package sms

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/kauri-edtech/smssync/internal/models"
)

// Structural CSV failures. They are user-facing only on the interactive
// upload path; the scheduled path skips the school instead.
var (
	ErrCSVEmpty      = errors.New("csv file is empty")
	ErrCSVHeaderOnly = errors.New("csv file contains a header row only")
)

// RequiredFieldError reports a required column missing from the header.
type RequiredFieldError struct {
	Field string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q missing from input", e.Field)
}

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ParseOptions describe one payload. ProfileFields lists the configured
// optional profile field keys to carry through (the smsuserfields setting).
type ParseOptions struct {
	Format        string
	Delimiter     string // comma, semicolon, colon, tab
	Encoding      string // UTF-8 when empty
	Source        string // models.OriginCron or models.OriginWeb
	ProfileFields []string
}

var crlfRe = regexp.MustCompile(`\r\n?`)
var doubleSpaceRe = regexp.MustCompile(`\s+`)

// ParseRecords turns a raw vendor payload into canonical student records.
// CSV headers run through NormalizeLabel; JSON keys too, with values copied
// verbatim. Fields outside the required/optional contract are dropped. The
// returned slice is consumed in one pass by the orchestrator.
func ParseRecords(payload []byte, opts ParseOptions) ([]*models.Student, error) {
	switch opts.Format {
	case FormatJSON:
		return parseJSON(payload, opts)
	default:
		return parseCSV(payload, opts)
	}
}

func parseCSV(payload []byte, opts ParseOptions) ([]*models.Student, error) {
	text, err := decodeCharset(payload, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	text = crlfRe.ReplaceAllString(text, "\n")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiterRune(opts.Delimiter)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	web := opts.Source == models.OriginWeb

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			if web {
				return nil, ErrCSVEmpty
			}
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	allowed := allowedFields(opts.ProfileFields)
	seen := make(map[string]bool)
	for i, h := range header {
		h = NormalizeLabel(h)
		header[i] = h
		seen[h] = true
	}
	if web {
		for _, req := range requiredFields {
			if !seen[req] {
				return nil, &RequiredFieldError{Field: req}
			}
		}
	}

	var students []*models.Student
	for {
		line, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		st := &models.Student{}
		for i, value := range line {
			if i >= len(header) {
				break
			}
			label := header[i]
			if !allowed[label] {
				continue
			}
			value = strings.TrimSpace(doubleSpaceRe.ReplaceAllString(strings.TrimSpace(value), " "))
			if label == ProfileFieldPrefix+"year" {
				value = extractYearToken(value)
			}
			setRecordField(st, label, value)
		}
		students = append(students, st)
	}
	if web && len(students) == 0 {
		return nil, ErrCSVHeaderOnly
	}
	return students, nil
}

func parseJSON(payload []byte, opts ParseOptions) ([]*models.Student, error) {
	var raw []map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}
	allowed := allowedFields(opts.ProfileFields)
	students := make([]*models.Student, 0, len(raw))
	for _, rec := range raw {
		st := &models.Student{}
		for k, v := range rec {
			label := NormalizeLabel(k)
			if !allowed[label] {
				continue
			}
			setRecordField(st, label, stringValue(v))
		}
		students = append(students, st)
	}
	return students, nil
}

// extractYearToken handles etap's combined room/year field, e.g. "Room1#Y6":
// the last space-free token containing a "y" wins, anything else maps to "".
func extractYearToken(value string) string {
	out := ""
	for _, tok := range strings.Split(strings.ToLower(value), "#") {
		if strings.Contains(tok, "y") && !strings.Contains(tok, " ") {
			out = tok
		}
	}
	return out
}

func setRecordField(st *models.Student, label, value string) {
	switch label {
	case "firstname":
		st.FirstName = value
	case "surname":
		st.Surname = value
	case FieldNSN:
		st.NSN = value
	case "suspended":
		st.Suspended = value == "1"
	default:
		if IsProfileField(label) {
			st.SetField(TrimProfilePrefix(label), value)
		}
	}
}

func allowedFields(profileFields []string) map[string]bool {
	allowed := map[string]bool{
		"firstname": true,
		"surname":   true,
		FieldNSN:    true,
		"suspended": true,
	}
	for _, f := range profileFields {
		if f = strings.TrimSpace(f); f != "" {
			allowed[ProfileFieldPrefix+f] = true
		}
	}
	return allowed
}

func delimiterRune(name string) rune {
	switch name {
	case "semicolon":
		return ';'
	case "colon":
		return ':'
	case "tab":
		return '\t'
	default:
		return ','
	}
}

func decodeCharset(payload []byte, name string) (string, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(name) {
	case "", "UTF-8", "UTF8":
		return string(payload), nil
	case "ISO-8859-1", "LATIN1":
		enc = charmap.ISO8859_1
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(payload), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		// JSON numbers arrive as float64; NSNs and years are integral.
		return strings.TrimSuffix(fmt.Sprintf("%.0f", t), ".")
	default:
		return fmt.Sprintf("%v", t)
	}
}
