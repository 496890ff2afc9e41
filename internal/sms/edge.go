package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kauri-edtech/smssync/internal/models"
)

// edgeVendor speaks the edge protocol: an OAuth-style token grant followed
// by JSON endpoints authenticated with a bearer header plus an appId header.
type edgeVendor struct {
	client *http.Client
}

func (v *edgeVendor) Name() string { return VendorEdge }

func (v *edgeVendor) FetchToken(ctx context.Context, cfg models.VendorConfig, schoolNo int64) (*Token, error) {
	body := fmt.Sprintf("grant_type=school&appId=%s&appSecret=%s&schoolNo=%d", cfg.Key, cfg.Secret, schoolNo)
	raw, err := fetch(ctx, v.client, VendorEdge, "token", http.MethodPut, cfg.URL1, nil, body)
	if err != nil {
		return nil, fmt.Errorf("edge token: %w", err)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("edge token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("edge token: empty access_token for school %d", schoolNo)
	}
	return &Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Key:         cfg.Key,
		UsersURL:    cfg.URL2,
		GroupsURL:   cfg.URL3,
	}, nil
}

func (v *edgeVendor) FetchUsers(ctx context.Context, tok *Token, schoolNo int64) (*Payload, error) {
	raw, err := fetch(ctx, v.client, VendorEdge, "users", http.MethodGet, tok.UsersURL, v.headers(tok), "")
	if err != nil {
		return nil, fmt.Errorf("edge users: %w", err)
	}
	return &Payload{Data: raw, Format: FormatJSON}, nil
}

func (v *edgeVendor) FetchGroups(ctx context.Context, tok *Token, schoolNo int64, year int) (map[string]string, error) {
	url := fmt.Sprintf("%s/%d", tok.GroupsURL, year)
	raw, err := fetch(ctx, v.client, VendorEdge, "groups", http.MethodGet, url, v.headers(tok), "")
	if err != nil {
		return nil, fmt.Errorf("edge groups: %w", err)
	}
	var list []struct {
		GroupNo   json.Number `json:"GroupNo"`
		GroupName string      `json:"GroupName"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("edge groups response: %w", err)
	}
	groups := make(map[string]string, len(list))
	for _, g := range list {
		groups[strconv.FormatInt(schoolNo, 10)+g.GroupNo.String()] = g.GroupName
	}
	return groups, nil
}

func (v *edgeVendor) headers(tok *Token) http.Header {
	h := http.Header{}
	h.Set("Authorization", tok.TokenType+" "+tok.AccessToken)
	h.Set("appId", tok.Key)
	return h
}
