package mcp

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient returns the HTTP client for a server, or nil when the
// SDK default is enough. OAuth tokens are cached and refreshed by the
// oauth2 token source.
func buildHTTPClient(ctx context.Context, cfg ServerConfig) (*http.Client, error) {
	var rt http.RoundTripper = http.DefaultTransport
	custom := false

	if len(cfg.Headers) > 0 {
		rt = &headerTransport{base: rt, headers: cfg.Headers}
		custom = true
	}

	switch cfg.Auth.Type {
	case "":
	case "oauth_client_credentials":
		cc := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
		}
		rt = &oauth2.Transport{Source: cc.TokenSource(ctx), Base: rt}
		custom = true
	default:
		return nil, fmt.Errorf("unsupported MCP auth type %q", cfg.Auth.Type)
	}

	if !custom {
		return nil, nil
	}
	return &http.Client{Transport: rt}, nil
}
