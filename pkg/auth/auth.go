// Package auth exchanges ArcGIS Online credentials for an access token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/ago-extract/pkg/client"
	"github.com/Sternrassler/ago-extract/pkg/logging"
	"github.com/Sternrassler/ago-extract/pkg/tokencache"
	"github.com/rs/zerolog"
)

const (
	// DefaultTokenURL is the ArcGIS Online generateToken endpoint.
	DefaultTokenURL = "https://www.arcgis.com/sharing/rest/generateToken"

	// DefaultReferer is sent as the referer the token is bound to.
	DefaultReferer = "https://www.arcgis.com"
)

// Credential is an AGO username and password. It is never persisted.
type Credential struct {
	Username string
	Password string
}

// Token is an AGO access token.
type Token struct {
	Value   string
	Expires time.Time
	SSL     bool
}

// TokenStore caches tokens between runs. *tokencache.Manager implements it.
type TokenStore interface {
	Get(ctx context.Context, key tokencache.Key) (*tokencache.Entry, error)
	Set(ctx context.Context, key tokencache.Key, entry *tokencache.Entry) error
	Delete(ctx context.Context, key tokencache.Key) error
}

// Config holds the authenticator configuration.
type Config struct {
	TokenURL string
	Referer  string

	// Expiration requests a token lifetime; zero leaves it to the server.
	Expiration time.Duration

	// Store is optional.
	Store TokenStore
}

// DefaultConfig returns the ArcGIS Online endpoints.
func DefaultConfig() Config {
	return Config{
		TokenURL: DefaultTokenURL,
		Referer:  DefaultReferer,
	}
}

// Authenticator requests tokens from the generateToken endpoint.
type Authenticator struct {
	client *client.Client
	config Config
	logger zerolog.Logger
}

// New creates an Authenticator that sends requests through c.
func New(c *client.Client, cfg Config) (*Authenticator, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Expiration < 0 {
		return nil, fmt.Errorf("expiration must be >= 0 (got %s)", cfg.Expiration)
	}

	return &Authenticator{
		client: c,
		config: cfg,
		logger: logging.NewLogger("auth"),
	}, nil
}

// GenerateToken returns a token for cred, from the store when one is cached.
// A failed attempt is not retried.
func (a *Authenticator) GenerateToken(ctx context.Context, cred Credential) (*Token, error) {
	if cred.Username == "" || cred.Password == "" {
		return nil, ErrMissingCredential
	}

	key := a.key(cred)

	if a.config.Store != nil {
		entry, err := a.config.Store.Get(ctx, key)
		switch {
		case err == nil:
			a.logger.Debug().Time("expires", entry.Expires).Msg("Using cached token")
			return &Token{Value: entry.Token, Expires: entry.Expires, SSL: entry.SSL}, nil
		case !errors.Is(err, tokencache.ErrCacheMiss):
			a.logger.Warn().Err(err).Msg("Token cache lookup failed")
		}
	}

	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)
	form.Set("referer", a.config.Referer)
	form.Set("f", "json")
	if a.config.Expiration > 0 {
		form.Set("expiration", strconv.Itoa(int(a.config.Expiration/time.Minute)))
	}

	body, err := a.client.PostForm(ctx, a.config.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	tok, err := parseTokenResponse(body)
	if err != nil {
		a.logger.Error().Err(err).Msg("Token not found")
		return nil, err
	}

	a.logger.Info().Time("expires", tok.Expires).Msg("Token generated")

	if a.config.Store != nil {
		entry := &tokencache.Entry{Token: tok.Value, Expires: tok.Expires, SSL: tok.SSL}
		if err := a.config.Store.Set(ctx, key, entry); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to cache token")
		}
	}

	return tok, nil
}

// Invalidate removes any cached token for cred. It is a no-op without a
// store.
func (a *Authenticator) Invalidate(ctx context.Context, cred Credential) error {
	if a.config.Store == nil {
		return nil
	}
	if err := a.config.Store.Delete(ctx, a.key(cred)); err != nil {
		return fmt.Errorf("evict cached token: %w", err)
	}
	a.logger.Info().Msg("Cached token evicted")
	return nil
}

func (a *Authenticator) key(cred Credential) tokencache.Key {
	return tokencache.Key{
		TokenURL: a.config.TokenURL,
		Username: cred.Username,
		Referer:  a.config.Referer,
		Secret:   cred.Password,
	}
}

type tokenResponse struct {
	Token   *string         `json:"token"`
	Expires json.RawMessage `json:"expires"`
	SSL     json.RawMessage `json:"ssl"`
	Error   json.RawMessage `json:"error"`
}

type errorObject struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func parseTokenResponse(body []byte) (*Token, error) {
	var rv tokenResponse
	if err := json.Unmarshal(body, &rv); err != nil {
		return nil, &UnknownAuthenticationError{Body: string(body), Err: err}
	}

	if rv.Token != nil && *rv.Token != "" {
		tok := &Token{Value: *rv.Token}
		_ = json.Unmarshal(rv.SSL, &tok.SSL)
		if ms, ok := parseExpires(rv.Expires); ok {
			tok.Expires = time.UnixMilli(ms)
		}
		return tok, nil
	}

	if len(rv.Error) > 0 && string(rv.Error) != "null" {
		authErr := &AuthenticationError{Payload: string(rv.Error)}
		var obj errorObject
		var msg string
		switch {
		case json.Unmarshal(rv.Error, &obj) == nil:
			authErr.Code = obj.Code
			authErr.Message = obj.Message
			authErr.Details = obj.Details
		case json.Unmarshal(rv.Error, &msg) == nil:
			authErr.Message = msg
		}
		return nil, authErr
	}

	return nil, &UnknownAuthenticationError{Body: string(body)}
}

// parseExpires reads epoch milliseconds sent as a number or a numeric
// string. Anything else leaves the expiry unknown.
func parseExpires(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return ms, true
}
