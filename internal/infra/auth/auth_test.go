package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

const testSecret = "dev-secret-key-change-in-production"

func TestHMACSigner_Claims(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "frontend-user", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "HS256", s.Algorithm())

	// токен из прошлого уже истек
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	old, err := s.Token()
	require.NoError(t, err)
	v := NewHMACValidator(testSecret)
	_, err = v.VerifyToken(old)
	require.Error(t, err)

	s.now = time.Now
	tok, err := s.Token()
	require.NoError(t, err)

	claims, err := v.WithAudience("ts-forecast").VerifyToken("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "frontend-user", claims.Subject)
	assert.ElementsMatch(t, domain.BackendAudience, []string(claims.Audience))
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestHMACSigner_EmptySecret(t *testing.T) {
	_, err := NewHMACSigner("", "frontend-user", time.Hour)
	assert.Error(t, err)
}

func TestValidator_WrongSecret(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "frontend-user", time.Hour)
	require.NoError(t, err)
	tok, err := s.Token()
	require.NoError(t, err)

	_, err = NewHMACValidator("other").VerifyToken(tok)
	assert.Error(t, err)
}

func TestValidator_UnknownAudience(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "frontend-user", time.Hour)
	require.NoError(t, err)
	tok, err := s.Token()
	require.NoError(t, err)

	_, err = NewHMACValidator(testSecret).WithAudience("billing").VerifyToken(tok)
	assert.Error(t, err)
}

func TestRSASigner_RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	s, err := NewSigner(testSecret, privPEM, "frontend-user", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "RS256", s.Algorithm())

	tok, err := s.Token()
	require.NoError(t, err)

	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)
	claims, err := NewRSAValidator(pub).VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "frontend-user", claims.Subject)

	// HS256 токен не проходит RSA проверку
	hs, err := NewHMACSigner(testSecret, "frontend-user", time.Minute)
	require.NoError(t, err)
	hsTok, err := hs.Token()
	require.NoError(t, err)
	_, err = NewRSAValidator(pub).VerifyToken(hsTok)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "operator", time.Hour)
	require.NoError(t, err)
	tok, err := s.Token()
	require.NoError(t, err)

	var gotSubject string
	h := NewMiddleware(NewHMACValidator(testSecret), zaptest.NewLogger(t))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSubject, _ = Subject(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "operator", gotSubject)
}
