package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabibdesk/internal/auth"
	"tabibdesk/internal/model"
)

const secret = "test-secret-0123456789"

var doctor = &model.User{ID: "u1", ClinicID: "c1", Role: model.RoleDoctor}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.MakeToken(doctor, secret, 0)
	require.NoError(t, err)

	c, err := auth.ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "c1", c.ClinicID)
	assert.Equal(t, model.RoleDoctor, c.Role)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultAccessTTL), c.ExpiresAt.Time, 5*time.Second)
}

func TestMakeTokenAt(t *testing.T) {
	at := time.Now().Add(3 * time.Minute).Truncate(time.Second)
	tok, err := auth.MakeTokenAt(doctor, secret, 10*time.Minute, at)
	require.NoError(t, err)

	c, err := auth.ParseToken(tok, secret)
	require.NoError(t, err)
	assert.WithinDuration(t, at, c.IssuedAt.Time, 0)
	assert.WithinDuration(t, at.Add(10*time.Minute), c.ExpiresAt.Time, 0)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := auth.MakeToken(doctor, secret, time.Minute)
	require.NoError(t, err)
	c := auth.Claims{
		UserID: "u1", ClinicID: "c1", Role: model.RoleDoctor,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)

	noClinic, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{UserID: "u1", Role: model.RoleAdmin}).
		SignedString([]byte(secret))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name, tok, secret string
	}{
		{"wrong secret", valid, "another-secret-9876543210"},
		{"expired", stale, secret},
		{"missing clinic", noClinic, secret},
		{"alg none", none, secret},
		{"garbage", "not.a.token", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ParseToken(tt.tok, tt.secret)
			require.Error(t, err)
		})
	}
}

func TestPasswords(t *testing.T) {
	h, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(h, "s3cret-pass"))
	assert.False(t, auth.CheckPassword(h, "wrong"))
}

func TestRefreshToken(t *testing.T) {
	raw, hash, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, hash, auth.HashRefreshToken(raw))
	assert.NotEqual(t, raw, hash)

	raw2, _, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
