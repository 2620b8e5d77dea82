package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestValidate(t *testing.T) {
	m := NewJWTManager(secret)

	token, err := m.Generate("u1", time.Hour)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTManager("another-secret-value").Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := m.Generate("u1", -time.Minute)
		require.NoError(t, err)
		_, err = m.Validate(expired)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
		signed, err := raw.SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = m.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "u1"})
		signed, err := raw.SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = m.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRequireAuth(t *testing.T) {
	m := NewJWTManager(secret)
	token, err := m.Generate("u1", time.Hour)
	require.NoError(t, err)

	var seenUser string
	var seenErr error
	h := RequireAuth(m, func(w http.ResponseWriter, _ *http.Request, err error) {
		seenErr = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserID(r.Context())
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  error
	}{
		{"valid", "Bearer " + token, http.StatusOK, nil},
		{"lowercase scheme", "bearer " + token, http.StatusOK, nil},
		{"missing", "", http.StatusUnauthorized, ErrMissingToken},
		{"basic scheme", "Basic dTE6cHc=", http.StatusUnauthorized, ErrInvalidToken},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser, seenErr = "", nil
			req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(seenErr, tt.wantErr), "error %v", seenErr)
				assert.Empty(t, seenUser)
			} else {
				assert.Equal(t, "u1", seenUser)
			}
		})
	}
}
