package siera

import (
	"strings"
	"sync"
)

// NotFound is the placeholder used when a credential is missing from the
// environment.
const NotFound = "Not_Found"

// Credentials holds the API key, refresh token and the current access token.
// Only the access token changes, and only through SetAccessToken.
type Credentials struct {
	mu           sync.RWMutex
	accessToken  string
	apiKey       string
	refreshToken string
}

func NewCredentials(accessToken, apiKey, refreshToken string) *Credentials {
	return &Credentials{
		accessToken:  accessToken,
		apiKey:       apiKey,
		refreshToken: refreshToken,
	}
}

func (c *Credentials) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Credentials) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Credentials) APIKey() string { return c.apiKey }

func (c *Credentials) RefreshToken() string { return c.refreshToken }

// Configured reports whether every credential holds a real value.
func (c *Credentials) Configured() bool {
	for _, v := range []string{c.AccessToken(), c.apiKey, c.refreshToken} {
		if isPlaceholder(v) {
			return false
		}
	}
	return true
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == NotFound
}
