// Package ttrest is a client for the Trading Technologies REST API.
// It covers token acquisition and refresh against the ttid service and the
// ttledger endpoints the risk monitor consumes (fills, positions).
//
// Usage example:
//
//	c := ttrest.NewClient(ttrest.Config{
//	    AppKey:    "key",
//	    AppSecret: "secret",
//	    Env:       "ext_prod_live",
//	    AppName:   "riskmonitor",
//	    Company:   "desk",
//	})
//	fills, err := c.GetFills(ctx, 0)
package ttrest

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://ttrestapi.trade.tt"

// Config configures the TT REST client.
type Config struct {
	AppKey    string
	AppSecret string
	Env       string // "ext_prod_live", "ext_prod_sim", or "ext_uat_cert"
	AppName   string
	Company   string
	Account   string // if set, Fills drops records for other accounts

	BaseURL   string        // default: https://ttrestapi.trade.tt
	Timeout   time.Duration // default: 30s
	TokenFile string        // token cache path, default: tt_token_<env>.json
	Debug     bool
}

// Client is a TT REST API client with automatic token refresh.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	tokens      *TokenManager
	instruments map[int64]InstrumentRef
}

// NewClient initializes the client. Token acquisition is lazy: the first
// authenticated request triggers the grant.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Env == "" {
		cfg.Env = "ext_uat_cert"
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
	c.tokens = newTokenManager(c)
	return c
}

// Env returns the configured environment path segment.
func (c *Client) Env() string { return c.cfg.Env }

// requestID builds the per-request identifier TT requires:
// "{app}-{company}--{guid}" with special characters stripped from the names.
func (c *Client) requestID() string {
	return sanitizeName(c.cfg.AppName) + "-" + sanitizeName(c.cfg.Company) + "--" + newGUID()
}

// sanitizeName removes the characters TT rejects in request IDs.
func sanitizeName(name string) string {
	const special = "$&+,/:;=?@\"<>#%{}|\\^~[]` "
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if strings.IndexByte(special, name[i]) < 0 {
			b.WriteByte(name[i])
		}
	}
	return b.String()
}

// newGUID returns a random RFC 4122 v4 UUID string.
func newGUID() string {
	var u [16]byte
	if _, err := rand.Read(u[:]); err != nil {
		// Degenerate fallback keeps request IDs unique enough.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// get performs an authenticated GET against a TT service endpoint, e.g.
// get(ctx, "ttledger", "/fills", params). The requestId parameter is added
// automatically.
func (c *Client) get(ctx context.Context, service, endpoint string, params url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("ttrest: token: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("requestId", c.requestID())

	reqURL := c.baseURL + "/" + service + "/" + c.cfg.Env + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ttrest: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.AppKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if c.cfg.Debug {
		log.Printf("[ttrest] GET %s", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ttrest: %s%s: %w", service, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ttrest: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token revoked server-side; force a fresh grant for the next call.
		c.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Service: service, Endpoint: endpoint, Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// postForm performs an unauthenticated form POST (used by the token grant).
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL,
		bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-api-key", c.cfg.AppKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	return raw, resp.StatusCode, err
}

// APIError is a non-200 response from the TT REST API.
type APIError struct {
	Service  string
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ttrest: %s%s: status %d: %s", e.Service, e.Endpoint, e.Status, truncate(e.Body, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// decodeJSON unmarshals raw into out with a contextual error.
func decodeJSON(raw []byte, out interface{}, what string) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ttrest: parse %s: %w", what, err)
	}
	return nil
}
