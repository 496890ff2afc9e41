package sms

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kauri-edtech/smssync/internal/models"
)

// etapVendor speaks the etap protocol: key/secret as query parameters, a
// bare-text access token, and CSV-like text payloads. The users and groups
// endpoints share a URL; a SendRooms flag switches the response. Success is
// distinguished from an error body by a sentinel substring in the headers
// ("mlep" for users, "Room" for groups).
type etapVendor struct {
	client *http.Client
}

func (v *etapVendor) Name() string { return VendorEtap }

func (v *etapVendor) FetchToken(ctx context.Context, cfg models.VendorConfig, schoolNo int64) (*Token, error) {
	tokenURL := fmt.Sprintf("%s?id=%s&p=%s", cfg.URL1, url.QueryEscape(cfg.Key), url.QueryEscape(cfg.Secret))
	raw, err := fetch(ctx, v.client, VendorEtap, "token", http.MethodGet, tokenURL, nil, "")
	if err != nil {
		return nil, fmt.Errorf("etap token: %w", err)
	}
	accessToken := strings.TrimSpace(string(raw))
	if accessToken == "" {
		return nil, errors.New("etap token: empty response")
	}
	tok := &Token{
		AccessToken: accessToken,
		Key:         cfg.Key,
		UsersURL:    cfg.URL2,
		GroupsURL:   cfg.URL3,
	}
	// Etap does not validate the school during the token step, so the
	// users payload is retrieved now for validation.
	body, err := fetch(ctx, v.client, VendorEtap, "users", http.MethodGet, v.dataURL(tok.UsersURL, tok, schoolNo, false), nil, "")
	if err != nil {
		return nil, fmt.Errorf("etap users: %w", err)
	}
	if !strings.Contains(string(body), "mlep") {
		return nil, fmt.Errorf("etap users: error response for school %d: %s", schoolNo, firstLine(body))
	}
	tok.usersPayload = body
	return tok, nil
}

func (v *etapVendor) FetchUsers(ctx context.Context, tok *Token, schoolNo int64) (*Payload, error) {
	data := tok.usersPayload
	if data == nil {
		body, err := fetch(ctx, v.client, VendorEtap, "users", http.MethodGet, v.dataURL(tok.UsersURL, tok, schoolNo, false), nil, "")
		if err != nil {
			return nil, fmt.Errorf("etap users: %w", err)
		}
		if !strings.Contains(string(body), "mlep") {
			return nil, fmt.Errorf("etap users: error response for school %d: %s", schoolNo, firstLine(body))
		}
		data = body
	}
	return &Payload{Data: data, Format: FormatCSV, Delimiter: "comma"}, nil
}

func (v *etapVendor) FetchGroups(ctx context.Context, tok *Token, schoolNo int64, year int) (map[string]string, error) {
	raw, err := fetch(ctx, v.client, VendorEtap, "groups", http.MethodGet, v.dataURL(tok.GroupsURL, tok, schoolNo, true), nil, "")
	if err != nil {
		return nil, fmt.Errorf("etap groups: %w", err)
	}
	text := string(raw)
	if !strings.Contains(text, "Room") {
		return nil, fmt.Errorf("etap groups: error response for school %d: %s", schoolNo, firstLine(raw))
	}
	return parseEtapGroups(text, schoolNo)
}

func (v *etapVendor) dataURL(base string, tok *Token, schoolNo int64, rooms bool) string {
	u := fmt.Sprintf("%s?k=%s&m=%d", base, url.QueryEscape(tok.AccessToken), schoolNo)
	if rooms {
		u += "&SendRooms=1"
	}
	return u
}

// parseEtapGroups reads the "GroupNo,GroupName" rows after the header and
// keys them by schoolno-prefixed group number.
func parseEtapGroups(text string, schoolNo int64) (map[string]string, error) {
	r := csv.NewReader(strings.NewReader(crlfRe.ReplaceAllString(text, "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	groups := make(map[string]string)
	header := true
	for {
		line, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("etap groups csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(line) < 2 {
			continue
		}
		groups[strconv.FormatInt(schoolNo, 10)+strings.TrimSpace(line[0])] = strings.TrimSpace(line[1])
	}
	return groups, nil
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
