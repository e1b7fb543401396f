package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/models"
)

var alice = models.User{ID: 7, Username: "2021000000001", RealName: "张三", Role: models.RoleStudent}

func TestSignAndVerify(t *testing.T) {
	v := NewVerifier("secret", "accounts")

	token, err := v.Sign(alice, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	user := claims.User()
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, alice.Username, user.Username)
	assert.Equal(t, alice.RealName, user.RealName)
	assert.Equal(t, models.RoleStudent, user.Role)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret", "accounts")

	expired, err := v.Sign(alice, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewVerifier("other-secret", "accounts").Sign(alice, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewVerifier("secret", "elsewhere").Sign(alice, time.Hour)
	require.NoError(t, err)
	noRole, err := v.Sign(models.User{ID: 1, Username: "x"}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Role: models.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"foreign":      foreign,
		"wrong issuer": wrongIssuer,
		"no role":      noRole,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		_, err := v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken), name)
	}
}
