package server

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/louisbranch/deltasync/internal/platform/config"
	"github.com/louisbranch/deltasync/internal/platform/httpx"
)

type authEnv struct {
	PublicKey string `env:"DELTASYNC_AUTH_PUBLIC_KEY"`
	Issuer    string `env:"DELTASYNC_AUTH_ISSUER"`
	Audience  string `env:"DELTASYNC_AUTH_AUDIENCE"`
}

// TokenVerifier checks Ed25519-signed bearer tokens on the sync surface.
type TokenVerifier struct {
	issuer   string
	audience string
	key      ed25519.PublicKey
	now      func() time.Time
}

// LoadVerifierFromEnv reads bearer auth configuration. It returns nil when no
// public key is configured, leaving the surface open (the expected setup when
// an authenticating gateway fronts the service).
func LoadVerifierFromEnv() (*TokenVerifier, error) {
	var raw authEnv
	if err := config.ParseEnv(&raw); err != nil {
		return nil, err
	}
	publicKey := strings.TrimSpace(raw.PublicKey)
	if publicKey == "" {
		return nil, nil
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	if issuer == "" {
		return nil, fmt.Errorf("DELTASYNC_AUTH_ISSUER is required when auth is enabled")
	}
	if audience == "" {
		return nil, fmt.Errorf("DELTASYNC_AUTH_AUDIENCE is required when auth is enabled")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	return &TokenVerifier{
		issuer:   issuer,
		audience: audience,
		key:      ed25519.PublicKey(keyBytes),
		now:      time.Now,
	}, nil
}

// Middleware rejects requests without a valid bearer token.
func (v *TokenVerifier) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || v.verify(token) != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func (v *TokenVerifier) verify(token string) error {
	_, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	return err
}
