package sms

import (
	"strconv"
	"strings"
	"time"
)

var yearWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13,
}

var dobLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02-01-2006",
	"2-1-2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Mapper converts raw vendor field values into the canonical encodings of
// the site's profile fields. GenderOptions is the site-defined option list
// for the gender field, in configured order.
type Mapper struct {
	GenderOptions []string
}

// Map translates one field value. The second return is an error code
// (ErrMapping) when the value could not be mapped; the record must still
// proceed with the returned default.
func (m *Mapper) Map(field, value string) (string, string) {
	switch strings.ToLower(field) {
	case "ethnicity":
		// Format e.g.: Australian. Site category conversion happens
		// downstream; unknown values pass through raw.
		if value == "" {
			return "Unknown", ""
		}
		return value, ""
	case "gender":
		return m.mapGender(value)
	case "year":
		return mapYear(value), ""
	case "dob":
		return mapDOB(value)
	case "room":
		return value, ""
	default:
		return value, ""
	}
}

// mapGender supports M/F, Male/Female and Tane/Wahine (macronized too),
// plus the combined "Male / Tāne" form.
func (m *Mapper) mapGender(value string) (string, string) {
	if value == "" {
		return "Unknown", ErrMapping
	}
	v := titleWords(value)
	for from, to := range map[string]string{
		"Tāne": "Male", "Tane": "Male",
		"Wāhine": "Female", "Wahine": "Female",
	} {
		v = strings.ReplaceAll(v, from, to)
	}
	if len([]rune(v)) == 1 {
		// Single letter codes match the site options by substring.
		final := ""
		for _, opt := range m.GenderOptions {
			if strings.Contains(opt, v) {
				final = opt
			}
		}
		return final, ""
	}
	// Combined "A / B" form: take the first token present in the site
	// options. When nothing intersects, fall back to the last configured
	// option. That fallback assigns a value that may not represent the
	// input; it is kept for parity with the established behaviour.
	tokens := strings.Split(v, " / ")
	for _, opt := range m.GenderOptions {
		for _, tok := range tokens {
			if opt == tok {
				return opt, ""
			}
		}
	}
	if n := len(m.GenderOptions); n > 0 {
		return m.GenderOptions[n-1], ""
	}
	return "", ""
}

// mapYear accepts "8", "Year8", "Y8" and English number words up to
// thirteen. Anything else coerces to 0.
func mapYear(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	out := ""
	if n, err := strconv.Atoi(v); err == nil && n != 0 {
		out = v
	} else if strings.Contains(v, "year") {
		out = strings.ReplaceAll(v, "year", "")
	} else if strings.Contains(v, "y") {
		out = strings.ReplaceAll(v, "y", "")
	} else if n, ok := yearWords[v]; ok {
		return strconv.Itoa(n)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(out))
	return strconv.Itoa(n)
}

// mapDOB normalizes the supported date formats (2019-03-25, 25/03/2019,
// 25.03.2019, 25 Nov 2019, two-digit years) to ISO. Unparseable input
// yields the sentinel "0" with ErrMapping; it must not abort the batch.
func mapDOB(value string) (string, string) {
	v := strings.ReplaceAll(value, ".", "-")
	v = strings.ReplaceAll(v, "/", "-")
	if parts := strings.Split(v, "-"); len(parts) == 3 {
		if len(parts[0]) <= 2 && len(parts[2]) == 2 {
			v = parts[0] + "-" + parts[1] + "-20" + parts[2]
		}
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), ""
		}
	}
	return "0", ErrMapping
}

// titleWords uppercases the first letter of each space-separated word.
func titleWords(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
