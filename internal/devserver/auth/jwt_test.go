package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("client-1", "backend", secret, time.Minute)
	require.NoError(t, err)

	clientID, err := GetClientIDFromToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "client-1", clientID)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("client-1", "backend", []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = GetClientIDFromToken(token, []byte("wrong"))
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken("client-1", "backend", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	_, err = GetClientIDFromToken(token, []byte("secret"))
	require.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	secret := []byte("secret")
	var gotClientID string

	handler := RequireAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClientID, _ = r.Context().Value(ClientIDKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := GenerateToken("client-1", "backend", secret, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "client-1", gotClientID)
	})
}
