// Package accounts holds the password handling shared by user and admin
// accounts. Both account kinds implement Credentialed and expose a Store, so
// callers pick the store from the token's account type instead of inspecting
// concrete types at runtime.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing
	BcryptCost = 12

	// MinPasswordLength applies to every account kind.
	MinPasswordLength = 6
)

var (
	ErrPasswordsRequired = errors.New("current password and new password are required")
	ErrPasswordTooShort  = errors.New("new password must be at least 6 characters long")
	ErrIncorrectPassword = errors.New("current password is incorrect")
	ErrAccountNotFound   = errors.New("account not found")
)

// Credentialed is any account that authenticates with a password.
type Credentialed interface {
	CredentialID() string
	PasswordHash() string
}

// Store loads and updates the credentials of one account kind.
type Store interface {
	GetCredentials(ctx context.Context, id string) (Credentialed, error)
	SetPasswordHash(ctx context.Context, id string, hash string) error
}

// HashPassword hashes a plaintext password with BcryptCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the account's stored hash.
func CheckPassword(account Credentialed, password string) bool {
	if account == nil || account.PasswordHash() == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash()), []byte(password)) == nil
}

// ChangePassword verifies current against the stored hash and replaces it with next.
func ChangePassword(ctx context.Context, store Store, id, current, next string) error {
	if current == "" || next == "" {
		return ErrPasswordsRequired
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	account, err := store.GetCredentials(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(account, current) {
		return ErrIncorrectPassword
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := store.SetPasswordHash(ctx, account.CredentialID(), hash); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}
