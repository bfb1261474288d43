package external

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"meterjob/internal/types"
)

// TokenSourceFactory hands out a client-credentials token source for a
// tenant. Sources are cached so tokens are reused across schedules that
// share a tenant within one pass.
type TokenSourceFactory interface {
	ForTenant(tenantID string) oauth2.TokenSource
}

// CredentialConfig describes one application registration.
type CredentialConfig struct {
	// Authority is the identity host, e.g. https://login.microsoftonline.com.
	Authority    string
	ClientID     string
	ClientSecret types.SecretString
	// Scopes selects the v2 token endpoint. When Resource is set instead,
	// the v1 endpoint is used with a resource parameter.
	Scopes     []string
	Resource   string
	HTTPClient *http.Client
}

// TenantCredentials is the clientcredentials-backed TokenSourceFactory.
type TenantCredentials struct {
	cfg CredentialConfig

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func NewTenantCredentials(cfg CredentialConfig) *TenantCredentials {
	return &TenantCredentials{
		cfg:     cfg,
		sources: make(map[string]oauth2.TokenSource),
	}
}

// ForTenant returns the cached token source for tenantID, creating it on
// first use.
func (c *TenantCredentials) ForTenant(tenantID string) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src, ok := c.sources[tenantID]; ok {
		return src
	}

	conf := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret.Unmask(),
		TokenURL:     c.tokenURL(tenantID),
		Scopes:       c.cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if c.cfg.Resource != "" {
		conf.EndpointParams = url.Values{"resource": {c.cfg.Resource}}
	}

	ctx := context.Background()
	if c.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)
	}
	src := conf.TokenSource(ctx)
	c.sources[tenantID] = src
	return src
}

func (c *TenantCredentials) tokenURL(tenantID string) string {
	base := strings.TrimRight(c.cfg.Authority, "/") + "/" + url.PathEscape(tenantID)
	if c.cfg.Resource != "" && len(c.cfg.Scopes) == 0 {
		return base + "/oauth2/token"
	}
	return base + "/oauth2/v2.0/token"
}

// authorize sets a bearer token from src on req.
func authorize(req *http.Request, src oauth2.TokenSource) error {
	tok, err := src.Token()
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamAuth, "failed to acquire access token", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
