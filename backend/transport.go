package backend

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig enables client-credentials bearer tokens on backend calls.
// It is disabled when TokenURL is empty.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Enabled reports whether token acquisition is configured.
func (c OAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.TokenURL) != ""
}

// NewHTTPClient returns the pooled client used for backend calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

// NewOAuthHTTPClient returns a pooled client that attaches a client-credentials
// token to every request. Token requests share the same transport and timeout.
func NewOAuthHTTPClient(ctx context.Context, timeout time.Duration, cfg OAuthConfig) *http.Client {
	base := NewHTTPClient(timeout)
	if !cfg.Enabled() {
		return base
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)
	client := oauth2.NewClient(tokenCtx, cc.TokenSource(tokenCtx))
	client.Timeout = timeout
	return client
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
