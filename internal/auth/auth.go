// Package auth implements pgsqlite's optional password authentication:
// cleartext PasswordMessage checked against a single configured bcrypt
// hash, the same credential-check call the teacher's
// internal/auth/middleware and internal/api/http password handlers use
// for admin/user logins, generalized from an HTTP Basic/login flow to the
// PG wire protocol's AuthenticationCleartextPassword exchange. Trust
// (no password) remains the default, matching spec.md's auth scope.
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// Checker verifies a cleartext password against a configured credential.
// A zero-value Checker (no hash configured) always allows, i.e. trust
// authentication.
type Checker struct {
	username string
	hash     []byte
}

// NewChecker builds a Checker requiring username/password to match; if
// passHash is empty, authentication is not required (trust).
func NewChecker(username, passHash string) *Checker {
	if passHash == "" {
		return &Checker{}
	}
	return &Checker{username: username, hash: []byte(passHash)}
}

// Required reports whether this checker enforces a password at all.
func (c *Checker) Required() bool {
	return len(c.hash) > 0
}

// Check verifies username/password; called after the client replies to
// an AuthenticationCleartextPassword request.
func (c *Checker) Check(username, password string) error {
	if !c.Required() {
		return nil
	}
	if username != c.username {
		return pgerror.Fatal(pgerror.InvalidParameterValue, "password authentication failed for user \""+username+"\"")
	}
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return pgerror.Fatal(pgerror.InvalidParameterValue, "password authentication failed for user \""+username+"\"")
	}
	return nil
}

// HashPassword bcrypt-hashes a plaintext password for storage in
// PGSQLITE_AUTH_PASSWORD_HASH, at the teacher's chosen cost factor.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
