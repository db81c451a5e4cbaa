// Package geoip resolves caller IPs to coarse locations via a third-party
// HTTP lookup. Lookups are best-effort: any failure degrades to an empty
// location and must never block or fail a login.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	sessiondomain "fieldops-session-control/internal/session/domain"
)

// Lookup resolves an IP to a best-effort geolocation. Implementations return
// the zero Geolocation and an error on failure; callers ignore the error
// beyond logging.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (sessiondomain.Geolocation, error)
}

// Client queries an ip-api style JSON endpoint: GET {base}/{ip} returning
// {"country":..,"city":..,"regionName":..,"lat":..,"lon":..}.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
}

// NewClient returns a Lookup against baseURL with the given per-request timeout.
// An empty baseURL yields a client whose lookups always return the zero location.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type lookupResponse struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Lookup resolves ip. Private or empty addresses and disabled clients return
// the zero location without error.
func (c *Client) Lookup(ctx context.Context, ip string) (sessiondomain.Geolocation, error) {
	var zero sessiondomain.Geolocation
	if c.baseURL == "" || ip == "" {
		return zero, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return zero, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("geoip: lookup returned %s", resp.Status)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return zero, err
	}
	return sessiondomain.Geolocation{
		Country: body.Country,
		City:    body.City,
		Region:  body.RegionName,
		Lat:     body.Lat,
		Lng:     body.Lon,
	}, nil
}
