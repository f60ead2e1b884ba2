package ttrest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// refreshBuffer is how long before expiry a token is considered stale.
const refreshBuffer = 600 * time.Second

// TokenManager acquires and caches an OAuth-style application token for the
// TT REST API. Tokens live ~24h; the manager re-grants when the remaining
// lifetime drops under refreshBuffer. The latest token is persisted to disk
// so restarts reuse it instead of burning a grant.
type TokenManager struct {
	client *Client

	mu        sync.Mutex
	token     string
	tokenType string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	SecondsUntilExpiry int64  `json:"seconds_until_expiry"`
}

// cachedToken is the on-disk token cache format.
type cachedToken struct {
	AccessToken              string `json:"access_token"`
	TokenType                string `json:"token_type"`
	AcquisitionTime          string `json:"acquisition_time"`
	SecondsUntilExpiryOnSave int64  `json:"seconds_until_expiry_on_save"`
}

func newTokenManager(c *Client) *TokenManager {
	tm := &TokenManager{client: c}
	tm.loadCache()
	return tm
}

// Token returns a valid access token, granting a new one if the cached token
// is missing or inside the refresh buffer.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Until(tm.expiresAt) > refreshBuffer {
		return tm.token, nil
	}
	if err := tm.grant(ctx); err != nil {
		return "", err
	}
	return tm.token, nil
}

// Invalidate drops the cached token so the next Token call re-grants.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = ""
	tm.expiresAt = time.Time{}
	tm.mu.Unlock()
}

// ExpiresAt reports when the current token expires (zero if none held).
func (tm *TokenManager) ExpiresAt() time.Time {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.expiresAt
}

// grant performs the token request. Caller holds tm.mu.
func (tm *TokenManager) grant(ctx context.Context) error {
	c := tm.client
	grantURL := c.baseURL + "/ttid/" + c.cfg.Env + "/token?requestId=" + url.QueryEscape(c.requestID())

	form := url.Values{}
	form.Set("grant_type", "user_app")
	form.Set("app_key", c.cfg.AppKey+":"+c.cfg.AppSecret)

	raw, status, err := c.postForm(ctx, grantURL, form)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	if status != 200 {
		return fmt.Errorf("token request: status %d: %s", status, truncate(string(raw), 200))
	}

	var tr tokenResponse
	if err := decodeJSON(raw, &tr, "token response"); err != nil {
		return err
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("token request: empty access_token in response")
	}

	tm.token = tr.AccessToken
	tm.tokenType = tr.TokenType
	tm.expiresAt = time.Now().Add(time.Duration(tr.SecondsUntilExpiry) * time.Second)
	log.Printf("[ttrest] token acquired, expires in %ds", tr.SecondsUntilExpiry)

	tm.saveCache()
	return nil
}

func (tm *TokenManager) cachePath() string {
	if tm.client.cfg.TokenFile != "" {
		return tm.client.cfg.TokenFile
	}
	return "tt_token_" + tm.client.cfg.Env + ".json"
}

// loadCache restores a previously saved token if it is still comfortably
// outside the refresh buffer.
func (tm *TokenManager) loadCache() {
	raw, err := os.ReadFile(tm.cachePath())
	if err != nil {
		return
	}
	var ct cachedToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		log.Printf("[ttrest] ignoring corrupt token cache %s: %v", tm.cachePath(), err)
		return
	}
	acquired, err := time.Parse(time.RFC3339, ct.AcquisitionTime)
	if err != nil {
		return
	}
	expiresAt := acquired.Add(time.Duration(ct.SecondsUntilExpiryOnSave) * time.Second)
	if time.Until(expiresAt) <= refreshBuffer {
		return
	}
	tm.token = ct.AccessToken
	tm.tokenType = ct.TokenType
	tm.expiresAt = expiresAt
	log.Printf("[ttrest] reusing cached token, expires %s", expiresAt.Format(time.RFC3339))
}

// saveCache best-effort persists the current token. Caller holds tm.mu.
func (tm *TokenManager) saveCache() {
	ct := cachedToken{
		AccessToken:              tm.token,
		TokenType:                tm.tokenType,
		AcquisitionTime:          time.Now().Format(time.RFC3339),
		SecondsUntilExpiryOnSave: int64(time.Until(tm.expiresAt) / time.Second),
	}
	raw, err := json.MarshalIndent(ct, "", "  ")
	if err != nil {
		return
	}
	path := tm.cachePath()
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		log.Printf("[ttrest] failed to save token cache: %v", err)
	}
}
