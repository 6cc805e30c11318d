// Package google exchanges a signed service-account assertion for a
// short-lived bearer token at Google's OAuth token endpoint.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultScope    = "https://www.googleapis.com/auth/datastore"
	defaultLifetime = time.Hour
)

// Options configures a Minter.
type Options struct {
	// Email is the service-account identity used as the assertion issuer.
	Email string
	// PrivateKeyPEM is the PKCS#8 or PKCS#1 RSA private key in PEM form.
	PrivateKeyPEM string
	Scope         string
	TokenURL      string
	Lifetime      time.Duration
	HTTPClient    *http.Client
}

// Minter builds RS256-signed JWT-bearer assertions and exchanges them for
// bearer access tokens. Tokens are not cached; every call performs a fresh
// exchange, matching the infrequent-call profile of the document adapter.
type Minter struct {
	email      string
	key        *rsa.PrivateKey
	scope      string
	tokenURL   string
	lifetime   time.Duration
	httpClient *http.Client
	now        func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewMinter parses the private key and returns a ready Minter.
func NewMinter(opts Options) (*Minter, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" {
		return nil, errors.New("google: service account email is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(opts.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("google: parse private key: %w", err)
	}
	scope := strings.TrimSpace(opts.Scope)
	if scope == "" {
		scope = defaultScope
	}
	tokenURL := strings.TrimSpace(opts.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	lifetime := opts.Lifetime
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Minter{
		email:      email,
		key:        key,
		scope:      scope,
		tokenURL:   tokenURL,
		lifetime:   lifetime,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Token mints a bearer token scoped to the configured capability. Any
// signing or exchange failure propagates to the caller; there is no retry
// at this layer.
func (m *Minter) Token(ctx context.Context) (string, error) {
	assertion, err := m.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeJWTBearer)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("google: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("google: token exchange status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("google: decode token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", errors.New("google: empty access token in response")
	}
	return decoded.AccessToken, nil
}

func (m *Minter) signAssertion() (string, error) {
	issuedAt := m.now().UTC()
	claims := jwt.MapClaims{
		"iss":   m.email,
		"scope": m.scope,
		"aud":   m.tokenURL,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(m.lifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("google: sign assertion: %w", err)
	}
	return signed, nil
}
