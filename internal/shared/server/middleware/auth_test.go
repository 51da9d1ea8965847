package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubVerifier struct {
	subject string
	err     error
}

func (s stubVerifier) Verify(context.Context, string) (string, error) {
	return s.subject, s.err
}

func newAuthRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/documents", func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFromContext(c))
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(AuthConfig{Env: "production", APIKeys: []string{"k"}}))
	router.OPTIONS("/api/v1/documents", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthAPIKey(t *testing.T) {
	router := newAuthRouter(AuthConfig{Env: "production", APIKeys: []string{"secret-key"}, Exempt: DefaultExemptPaths})

	cases := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"valid key", "/api/v1/documents", "secret-key", http.StatusOK},
		{"wrong key", "/api/v1/documents", "nope", http.StatusUnauthorized},
		{"missing key", "/api/v1/documents", "", http.StatusUnauthorized},
		{"exempt health", "/health", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestAuthOpenInDevWithoutKeys(t *testing.T) {
	router := newAuthRouter(AuthConfig{Env: "dev"})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || resp.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous 200, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestAuthBearerToken(t *testing.T) {
	router := newAuthRouter(AuthConfig{Env: "production", Verifier: stubVerifier{subject: "user-42"}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || resp.Body.String() != "sub:user-42" {
		t.Fatalf("expected sub:user-42, got %d %q", resp.Code, resp.Body.String())
	}

	router = newAuthRouter(AuthConfig{Env: "production", Verifier: stubVerifier{err: errors.New("expired")}})
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected token, got %d", resp.Code)
	}
}
