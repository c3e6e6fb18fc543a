package auth_test

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/auth"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

func TestZeroValueCheckerTrusts(t *testing.T) {
	c := auth.NewChecker("postgres", "")
	if c.Required() {
		t.Fatal("expected an empty password hash to mean trust")
	}
	if err := c.Check("anyone", "anything"); err != nil {
		t.Fatalf("expected trust checker to accept any credentials, got %v", err)
	}
}

func TestCheckerRejectsWrongUsername(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	c := auth.NewChecker("postgres", hash)
	if !c.Required() {
		t.Fatal("expected a configured hash to require auth")
	}
	if err := c.Check("nobody", "correct horse battery staple"); err == nil {
		t.Fatal("expected an error for the wrong username")
	}
}

func TestCheckerAcceptsCorrectPassword(t *testing.T) {
	hash, err := auth.HashPassword("swordfish")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	c := auth.NewChecker("postgres", hash)
	if err := c.Check("postgres", "swordfish"); err != nil {
		t.Fatalf("expected correct password to be accepted, got %v", err)
	}
}

func TestCheckerRejectsWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("swordfish")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	c := auth.NewChecker("postgres", hash)
	err = c.Check("postgres", "wrong")
	if err == nil {
		t.Fatal("expected an error for the wrong password")
	}
	pgErr := pgerror.As(err)
	if pgErr.Code != pgerror.InvalidParameterValue {
		t.Fatalf("expected SQLSTATE %s, got %s", pgerror.InvalidParameterValue, pgErr.Code)
	}
}
