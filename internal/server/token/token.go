// Package token issues the PASETO service tokens protecting the lifecycle
// event API. Collaborator applications authenticate with one of these, there
// are no user accounts in this engine.
package token

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/o1egl/paseto/v2"
	"github.com/pkg/errors"
)

const (
	// Issuer identifies tokens minted by this server.
	Issuer = "ideastream"
	// TypeServiceToken is the audience of collaborator service tokens.
	TypeServiceToken = "service"
)

// New mints a service token for the given collaborator name.
func New(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	tk := paseto.JSONToken{
		Audience:   TypeServiceToken,
		Issuer:     Issuer,
		Jti:        uuid.Must(uuid.NewV4()).String(),
		Subject:    subject,
		IssuedAt:   now,
		NotBefore:  now,
		Expiration: now.Add(ttl),
	}

	token, err := paseto.NewV2().Encrypt(secret, tk, nil)
	return token, errors.Wrap(err, "could not encrypt service token")
}
