package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	u := domain.User{ID: uuid.New(), Role: domain.RoleManager}

	token, err := iss.Issue(u)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, domain.RoleManager, claims.Role)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	u := domain.User{ID: uuid.New(), Role: domain.RoleCustomer}

	other, err := NewIssuer("other", time.Hour).Issue(u)
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Hour).Parse(other)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	iss := NewIssuer("secret", time.Minute)
	token, err := iss.Issue(u)
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.Parse(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: u.ID, Role: domain.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(unsigned)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
