package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kauri-edtech/smssync/internal/metrics"
	"github.com/kauri-edtech/smssync/internal/models"
)

const (
	VendorEdge = "edge"
	VendorEtap = "etap"

	vendorTimeout    = 30 * time.Second
	vendorMaxRetries = 3
)

// Token is the result of a vendor authentication round. Etap validates the
// school only on the data call, so its token carries the prefetched users
// payload.
type Token struct {
	AccessToken string
	TokenType   string
	Key         string
	UsersURL    string
	GroupsURL   string

	usersPayload []byte
}

// Payload is a raw roster body plus how to parse it.
type Payload struct {
	Data      []byte
	Format    string // FormatCSV or FormatJSON
	Delimiter string
}

// Vendor is one SMS protocol. Implementations select the wire format and
// auth scheme; the caller never branches on the vendor name.
type Vendor interface {
	Name() string
	FetchToken(ctx context.Context, cfg models.VendorConfig, schoolNo int64) (*Token, error)
	FetchUsers(ctx context.Context, tok *Token, schoolNo int64) (*Payload, error)
	// FetchGroups returns the vendor's current group list keyed by
	// "{schoolno}{vendor group key}".
	FetchGroups(ctx context.Context, tok *Token, schoolNo int64, year int) (map[string]string, error)
}

// VendorFor selects the protocol implementation by configured vendor name.
func VendorFor(name string, client *http.Client) (Vendor, error) {
	if client == nil {
		client = &http.Client{Timeout: vendorTimeout}
	}
	switch name {
	case VendorEdge:
		return &edgeVendor{client: client}, nil
	case VendorEtap:
		return &etapVendor{client: client}, nil
	default:
		return nil, fmt.Errorf("unknown sms vendor %q", name)
	}
}

// fetch performs one vendor HTTP call with bounded exponential-backoff
// retries. 4xx responses are permanent; 5xx and transport errors retry.
func fetch(ctx context.Context, client *http.Client, vendor, endpoint, method, url string, header http.Header, body string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.ObserveVendorRequest(vendor, endpoint, time.Since(start)) }()

	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			err = fmt.Errorf("%s %s: http %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(b)))
			if resp.StatusCode/100 == 4 {
				return backoff.Permanent(err)
			}
			return err
		}
		out = b
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), vendorMaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out, nil
}
