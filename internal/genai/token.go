package genai

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// tokenScope requested in the assertion claim set.
	tokenScope = "https://www.googleapis.com/auth/generative-language https://www.googleapis.com/auth/cloud-platform"

	// assertionLifetime is the validity window claimed by the signed
	// assertion.
	assertionLifetime = time.Hour

	// expirySlack: cached tokens are refreshed this long before they expire.
	expirySlack = 60 * time.Second
)

// TokenSource exchanges a signed service-account assertion for a short-lived
// bearer token and caches it until near expiry. It is explicit injected
// state, not an ambient global: construct one and share it.
type TokenSource struct {
	email         string
	privateKey    *rsa.PrivateKey
	tokenEndpoint string
	client        *http.Client
	now           func() time.Time

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewTokenSource parses the service-account private key and returns a ready
// token source.
func NewTokenSource(email string, privateKeyPEM []byte, tokenEndpoint string, client *http.Client) (*TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing service account private key: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSource{
		email:         email,
		privateKey:    key,
		tokenEndpoint: tokenEndpoint,
		client:        client,
		now:           time.Now,
	}, nil
}

// Token returns a bearer token, reusing the cached one until expirySlack
// before its expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cached != "" && ts.now().Add(expirySlack).Before(ts.expiry) {
		return ts.cached, nil
	}

	assertion, err := ts.signAssertion()
	if err != nil {
		return "", err
	}

	token, expiresIn, err := ts.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	ts.cached = token
	ts.expiry = ts.now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

// Invalidate drops the cached token so the next Token call re-exchanges.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cached = ""
	ts.expiry = time.Time{}
}

// signAssertion builds the RS256-signed claim set for the JWT bearer grant.
func (ts *TokenSource) signAssertion() (string, error) {
	now := ts.now()
	claims := jwt.MapClaims{
		"iss":   ts.email,
		"sub":   ts.email,
		"scope": tokenScope,
		"aud":   ts.tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(ts.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}

// exchange posts the assertion to the token endpoint.
func (ts *TokenSource) exchange(ctx context.Context, assertion string) (string, int, error) {
	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("exchanging assertion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned no access_token")
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = 3600
	}
	return out.AccessToken, out.ExpiresIn, nil
}
