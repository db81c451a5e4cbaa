package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient checks session validity against the control service's validate
// endpoint. 401 and 410 are definitive "invalid" answers; everything else
// that is not a 200 counts as transient.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewHTTPClient returns a validity-check client for the session bound to
// token. httpc may be nil to use http.DefaultClient.
func NewHTTPClient(baseURL, token string, httpc *http.Client) *HTTPClient {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpc:   httpc,
	}
}

// Check performs one validity poll. The validate call doubles as a heartbeat
// on the server side, so a monitored session never idles out while its client
// is running.
func (c *HTTPClient) Check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions/validate", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized, http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("monitor: validate returned %s", resp.Status)
	}
}
