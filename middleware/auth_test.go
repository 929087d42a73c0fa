package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/constants"
	"github.com/jibzus/bluefleet-sub001/httpServices/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func hsToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

type stubDirectory map[string]string

func (d stubDirectory) ResolveUser(_ context.Context, id string) (*sso.User, error) {
	role, ok := d[id]
	if !ok {
		return nil, sso.ErrUnknownUser
	}
	return &sso.User{ID: id, Role: role}, nil
}

func newApp(auth *Authenticator, perms ...string) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", auth.RequirePermissions(perms...), func(c *fiber.Ctx) error {
		a := GetActor(c)
		return c.JSON(fiber.Map{"id": a.ID, "admin": a.IsAdmin()})
	})
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func TestRequirePermissions(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{JWTSecret: secret}, stubDirectory{"dir-admin": "admin"})
	app := newApp(auth, constants.PermAdminFull, constants.PermOwnerFull)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"expired", hsToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix(), "permissions": []string{constants.PermOwnerFull}}), http.StatusUnauthorized},
		{"no subject", hsToken(t, jwt.MapClaims{"permissions": []string{constants.PermOwnerFull}}), http.StatusUnauthorized},
		{"wrong permission", hsToken(t, jwt.MapClaims{"sub": "u1", "permissions": []string{constants.PermOperatorFull}}), http.StatusForbidden},
		{"owner", hsToken(t, jwt.MapClaims{"sub": "u1", "permissions": []string{constants.PermOwnerFull}}), http.StatusOK},
		{"role claim", hsToken(t, jwt.MapClaims{"sub": "u2", "role": "owner"}), http.StatusOK},
		{"directory role", hsToken(t, jwt.MapClaims{"sub": "dir-admin"}), http.StatusOK},
		{"unknown to directory", hsToken(t, jwt.MapClaims{"sub": "ghost"}), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := call(t, app, tt.token)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestActorFromToken(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{JWTSecret: secret}, nil)
	app := newApp(auth, constants.PermAny)

	status, body := call(t, app, hsToken(t, jwt.MapClaims{"sub": "a1", "permissions": []string{constants.PermAdminFull}}))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a1", body["id"])
	assert.Equal(t, true, body["admin"])
}

func TestRS256FromPublicKeyURL(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]string{"key": pemKey})
	}))
	defer srv.Close()

	auth := NewAuthenticator(config.AuthConfig{PublicKeyURL: srv.URL}, nil)
	app := newApp(auth, constants.PermOperatorFull)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "op-1", "permissions": []string{constants.PermOperatorFull}, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		status, _ := call(t, app, token)
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, 1, hits, "public key is cached")

	// an HS256 token must not pass when RS256 is configured
	status, _ := call(t, app, hsToken(t, jwt.MapClaims{"sub": "op-1", "permissions": []string{constants.PermOperatorFull}}))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSchedulerSecret(t *testing.T) {
	app := fiber.New()
	app.Post("/poll", RequireSchedulerSecret("s3cret"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusAccepted) })
	closed := fiber.New()
	closed.Post("/poll", RequireSchedulerSecret(""), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusAccepted) })

	do := func(a *fiber.App, header string) int {
		req := httptest.NewRequest("POST", "/poll", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := a.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusAccepted, do(app, "Bearer s3cret"))
	assert.Equal(t, http.StatusUnauthorized, do(app, "Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, do(app, ""))
	assert.Equal(t, http.StatusUnauthorized, do(closed, "Bearer "))
}

func TestFetchPublicKeyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"key":"not pem"}`))
	}))
	defer srv.Close()

	_, err := FetchPublicKey(http.DefaultClient, srv.URL+"/down")
	assert.Error(t, err)
	_, err = FetchPublicKey(http.DefaultClient, srv.URL+"/bad")
	assert.Error(t, err)
}
