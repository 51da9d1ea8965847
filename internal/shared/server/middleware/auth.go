package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/shared/server/respond"
)

const principalKey = "principal"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	Env      string
	APIKeys  []string
	Verifier TokenVerifier
	// Exempt lists paths served without credentials.
	Exempt []string
}

// DefaultExemptPaths are the health and metrics endpoints.
var DefaultExemptPaths = []string{"/health", "/ready", "/live", "/metrics"}

// Auth accepts an X-API-Key header or an OIDC bearer token. In dev with
// nothing configured every request passes as "anonymous".
func Auth(cfg AuthConfig) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = struct{}{}
	}
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	open := len(keys) == 0 && cfg.Verifier == nil && cfg.Env != "production"

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := exempt[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if open {
			c.Set(principalKey, "anonymous")
			c.Next()
			return
		}

		if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
			for _, k := range keys {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					c.Set(principalKey, "key:"+keyFingerprint(key))
					c.Next()
					return
				}
			}
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if cfg.Verifier != nil && strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			subject, err := cfg.Verifier.Verify(c.Request.Context(), token)
			if err != nil || subject == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			c.Set(principalKey, "sub:"+subject)
			c.Next()
			return
		}

		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing API key", nil)
	}
}

// PrincipalFromContext returns the caller identity set by Auth.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(principalKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// OIDCVerifier validates ID tokens against an issuer's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer configuration.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Verify implements TokenVerifier.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	return tok.Subject, nil
}
