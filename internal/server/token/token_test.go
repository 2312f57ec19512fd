package token_test

import (
	"testing"
	"time"

	"github.com/imath/ideastream/internal/server/token"
	"github.com/o1egl/paseto/v2"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	secret := []byte("00000000000000000000000000000000")

	tk, err := token.New(secret, "submission-app", time.Hour)
	assert.NoError(t, err)

	var claims paseto.JSONToken
	err = paseto.NewV2().Decrypt(tk, secret, &claims, nil)
	assert.NoError(t, err)

	assert.Equal(t, token.Issuer, claims.Issuer)
	assert.Equal(t, token.TypeServiceToken, claims.Audience)
	assert.Equal(t, "submission-app", claims.Subject)
	assert.NotEmpty(t, claims.Jti)
	assert.True(t, claims.Expiration.After(time.Now()))

	// Another secret cannot decrypt it.
	err = paseto.NewV2().Decrypt(tk, []byte("11111111111111111111111111111111"), &claims, nil)
	assert.Error(t, err)
}
