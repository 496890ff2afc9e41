package sms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kauri-edtech/smssync/internal/models"
)

// NoDataError means a vendor endpoint produced no data, or fewer records
// than the safeguard threshold allows. The school's run must abort without
// touching memberships.
type NoDataError struct {
	Endpoint string
	Reason   string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data from %s: %s", e.Endpoint, e.Reason)
}

// Client retrieves roster data from a school's configured vendor. The
// vendor group cache lives until Reset, which the orchestrator calls at the
// start of every pass, so cached groups never span runs.
type Client struct {
	store         SchoolStore
	httpc         *http.Client
	safeguard     int
	profileFields []string

	groups map[int64]map[string]string // by schoolno
}

func NewClient(store SchoolStore, httpc *http.Client, safeguard int, profileFields []string) *Client {
	return &Client{
		store:         store,
		httpc:         httpc,
		safeguard:     safeguard,
		profileFields: profileFields,
		groups:        make(map[int64]map[string]string),
	}
}

// Reset drops the vendor group cache.
func (c *Client) Reset() {
	c.groups = make(map[int64]map[string]string)
}

func (c *Client) connect(ctx context.Context, school *models.School) (Vendor, *Token, *models.VendorConfig, error) {
	cfg, err := c.store.VendorConfig(ctx, school.SMSID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vendor config %d: %w", school.SMSID, err)
	}
	if cfg == nil {
		return nil, nil, nil, fmt.Errorf("school %d has no vendor config for smsid %d", school.SchoolNo, school.SMSID)
	}
	vendor, err := VendorFor(cfg.Name, c.httpc)
	if err != nil {
		return nil, nil, nil, err
	}
	tok, err := vendor.FetchToken(ctx, *cfg, school.SchoolNo)
	if err != nil {
		return nil, nil, nil, err
	}
	return vendor, tok, cfg, nil
}

// Groups returns the vendor's current group list for the school, keyed by
// schoolno-prefixed vendor group key, cached for the life of the client.
// An empty or below-safeguard list is a NoDataError: the school must not
// reconcile memberships against suspect vendor data.
func (c *Client) Groups(ctx context.Context, school *models.School) (map[string]string, error) {
	if cached, ok := c.groups[school.SchoolNo]; ok {
		return cached, nil
	}
	vendor, tok, cfg, err := c.connect(ctx, school)
	if err != nil {
		return nil, err
	}
	groups, err := vendor.FetchGroups(ctx, tok, school.SchoolNo, time.Now().Year())
	if err != nil {
		return nil, &NoDataError{Endpoint: cfg.URL3, Reason: err.Error()}
	}
	if len(groups) == 0 || len(groups) < c.safeguard {
		return nil, &NoDataError{
			Endpoint: cfg.URL3,
			Reason:   fmt.Sprintf("%d groups returned, safeguard is %d", len(groups), c.safeguard),
		}
	}
	c.groups[school.SchoolNo] = groups
	return groups, nil
}

// Students fetches and parses the school's current roster. A parsed record
// count at or below the safeguard threshold is a NoDataError.
func (c *Client) Students(ctx context.Context, school *models.School) ([]*models.Student, error) {
	vendor, tok, cfg, err := c.connect(ctx, school)
	if err != nil {
		return nil, err
	}
	payload, err := vendor.FetchUsers(ctx, tok, school.SchoolNo)
	if err != nil {
		return nil, &NoDataError{Endpoint: cfg.URL2, Reason: err.Error()}
	}
	students, err := ParseRecords(payload.Data, ParseOptions{
		Format:        payload.Format,
		Delimiter:     payload.Delimiter,
		Source:        models.OriginCron,
		ProfileFields: c.profileFields,
	})
	if err != nil {
		return nil, &NoDataError{Endpoint: cfg.URL2, Reason: err.Error()}
	}
	if len(students) <= c.safeguard {
		return nil, &NoDataError{
			Endpoint: cfg.URL2,
			Reason:   fmt.Sprintf("%d records returned, safeguard is %d", len(students), c.safeguard),
		}
	}
	return students, nil
}
