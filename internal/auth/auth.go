// Package auth provides bearer token authorization for SOAP endpoints.
//
// Tokens are validated with an HMAC secret or against the RSA keys of a
// JWKS document. [Filter] plugs the validation into the dispatch pipeline
// as an action filter, so that rejected requests are answered with a
// Sender fault and HTTP status 401 or 403.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirosfoundation/go-soap/internal/config"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
)

// Sentinel errors for authentication failures.
// These errors are returned by [Authenticator.ValidateToken] and
// [Authenticator.ValidateRequest] to indicate specific failure modes.
var (
	// ErrNoToken indicates no Authorization header or Bearer token was provided.
	ErrNoToken = errors.New("no authorization token provided")

	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid authorization token")

	// ErrTokenExpired indicates the token's exp claim is in the past.
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidAudience indicates the token's aud claim doesn't include the configured audience.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrInvalidIssuer indicates the token's iss claim doesn't match the configured issuer.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInsufficientScope indicates the token lacks a scope required by the operation.
	ErrInsufficientScope = errors.New("insufficient scope")
)

// Claims represents the JWT claims we care about
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// HasScope checks if the space separated scope claim contains scope
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// ToRSAPublicKey converts a JWK to an RSA public key
func (j *JWK) ToRSAPublicKey() (*rsa.PublicKey, error) {
	if j.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s", j.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

var validMethods = []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}

// Authenticator handles JWT validation
type Authenticator struct {
	config *config.OAuth2Config
	logger *slog.Logger
	client *http.Client

	// Cached JWKS
	jwksMu     sync.RWMutex
	jwksKeys   map[string]*rsa.PublicKey
	jwksExpiry time.Time
}

// NewAuthenticator creates a new JWT authenticator
func NewAuthenticator(cfg *config.OAuth2Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		config:   cfg,
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		jwksKeys: make(map[string]*rsa.PublicKey),
	}
}

// IsEnabled returns true if a secret or a JWKS URL is configured
func (a *Authenticator) IsEnabled() bool {
	return a.config != nil && a.config.Enabled()
}

// ValidateRequest extracts and validates the JWT from an HTTP request
func (a *Authenticator) ValidateRequest(r *http.Request) (*Claims, error) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, ErrNoToken
	}
	return a.ValidateToken(r.Context(), token)
}

// ValidateToken validates a JWT and returns its claims
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.keyFor(ctx, t)
	}, opts...)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, ErrInvalidAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, ErrInvalidIssuer
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
}

// keyFor selects the verification key for the signing method of t
func (a *Authenticator) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if a.config.Secret == "" {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.Secret), nil
	case *jwt.SigningMethodRSA:
		if a.config.JWKSUrl == "" {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		return a.getKey(ctx, kid)
	}
	return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
}

func (a *Authenticator) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	// Check cache first
	a.jwksMu.RLock()
	if key, ok := a.jwksKeys[kid]; ok && time.Now().Before(a.jwksExpiry) {
		a.jwksMu.RUnlock()
		return key, nil
	}
	a.jwksMu.RUnlock()

	if err := a.refreshJWKS(ctx); err != nil {
		return nil, err
	}

	a.jwksMu.RLock()
	defer a.jwksMu.RUnlock()

	key, ok := a.jwksKeys[kid]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}
	return key, nil
}

func (a *Authenticator) refreshJWKS(ctx context.Context) error {
	a.jwksMu.Lock()
	defer a.jwksMu.Unlock()

	// Double-check after acquiring write lock
	if time.Now().Before(a.jwksExpiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.JWKSUrl, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading JWKS: %w", err)
	}

	var jwks JWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range jwks.Keys {
		if k.Use == "sig" || k.Use == "" {
			pk, err := k.ToRSAPublicKey()
			if err != nil {
				a.logger.Warn("failed to parse JWK", "kid", k.Kid, "error", err)
				continue
			}
			keys[k.Kid] = pk
		}
	}

	a.jwksKeys = keys
	a.jwksExpiry = time.Now().Add(1 * time.Hour)

	a.logger.Info("refreshed JWKS", "keys", len(keys))
	return nil
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Context key for storing claims
type contextKey string

const ClaimsContextKey contextKey = "auth_claims"

// ClaimsFromContext retrieves claims from context
func ClaimsFromContext(ctx context.Context) *Claims {
	if v, ok := ctx.Value(ClaimsContextKey).(*Claims); ok {
		return v
	}
	return nil
}

// ContextWithClaims adds claims to context
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// Filter is a dispatch action filter requiring a valid bearer token.
// Operations may additionally require scopes.
type Filter struct {
	auth   *Authenticator
	scopes map[string]string
	logger *slog.Logger
}

// NewFilter creates an action filter validating tokens with auth. The
// configured oauth2 scope, if any, is required for every operation.
func NewFilter(auth *Authenticator) *Filter {
	return &Filter{
		auth:   auth,
		scopes: make(map[string]string),
		logger: auth.logger.With(slog.String("component", "auth")),
	}
}

// RequireScope requires scope for the operation named operation.
func (f *Filter) RequireScope(operation, scope string) *Filter {
	f.scopes[operation] = scope
	return f
}

// OnActionExecuting validates the request token. The claims are attached to
// the context the operation runs with.
func (f *Filter) OnActionExecuting(ctx context.Context, ac *dispatch.ActionContext) error {
	if ac.Request == nil {
		return fmt.Errorf("%w: %w", dispatch.ErrUnauthorized, ErrNoToken)
	}
	claims, err := f.auth.ValidateRequest(ac.Request)
	if err != nil {
		f.logger.DebugContext(ctx, "authentication failed",
			slog.String("operation", ac.Operation.Name),
			slog.String("error", err.Error()))
		switch {
		case errors.Is(err, ErrInvalidAudience), errors.Is(err, ErrInvalidIssuer):
			return fmt.Errorf("%w: %w", dispatch.ErrForbidden, err)
		}
		return fmt.Errorf("%w: %w", dispatch.ErrUnauthorized, err)
	}

	for _, scope := range []string{f.auth.config.Scope, f.scopes[ac.Operation.Name]} {
		if scope != "" && !claims.HasScope(scope) {
			f.logger.WarnContext(ctx, "operation access denied",
				slog.String("operation", ac.Operation.Name),
				slog.String("subject", claims.Subject),
				slog.String("scope", scope))
			return fmt.Errorf("%w: %w: %s", dispatch.ErrForbidden, ErrInsufficientScope, scope)
		}
	}

	ac.Request = ac.Request.WithContext(ContextWithClaims(ctx, claims))
	return nil
}

// OnActionExecuted does nothing.
func (f *Filter) OnActionExecuted(context.Context, *dispatch.ActionContext) {}
