package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	id   string
	hash string
}

func (a fakeAccount) CredentialID() string { return a.id }
func (a fakeAccount) PasswordHash() string { return a.hash }

type fakeStore struct {
	accounts map[string]string
	setErr   error
}

func (s *fakeStore) GetCredentials(_ context.Context, id string) (Credentialed, error) {
	hash, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return fakeAccount{id: id, hash: hash}, nil
}

func (s *fakeStore) SetPasswordHash(_ context.Context, id, hash string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.accounts[id] = hash
	return nil
}

func newStore(t *testing.T, id, password string) *fakeStore {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &fakeStore{accounts: map[string]string{id: hash}}
}

func TestChangePassword(t *testing.T) {
	store := newStore(t, "acct-1", "old-secret")

	err := ChangePassword(context.Background(), store, "acct-1", "old-secret", "new-secret")

	require.NoError(t, err)
	account, err := store.GetCredentials(context.Background(), "acct-1")
	require.NoError(t, err)
	require.True(t, CheckPassword(account, "new-secret"))
	require.False(t, CheckPassword(account, "old-secret"))
}

func TestChangePasswordValidation(t *testing.T) {
	store := newStore(t, "acct-1", "old-secret")
	ctx := context.Background()

	require.ErrorIs(t, ChangePassword(ctx, store, "acct-1", "", "new-secret"), ErrPasswordsRequired)
	require.ErrorIs(t, ChangePassword(ctx, store, "acct-1", "old-secret", ""), ErrPasswordsRequired)
	require.ErrorIs(t, ChangePassword(ctx, store, "acct-1", "old-secret", "short"), ErrPasswordTooShort)
	require.ErrorIs(t, ChangePassword(ctx, store, "acct-1", "wrong", "new-secret"), ErrIncorrectPassword)
	require.ErrorIs(t, ChangePassword(ctx, store, "missing", "old-secret", "new-secret"), ErrAccountNotFound)
}

func TestChangePasswordStoreFailure(t *testing.T) {
	store := newStore(t, "acct-1", "old-secret")
	store.setErr = errors.New("db down")

	err := ChangePassword(context.Background(), store, "acct-1", "old-secret", "new-secret")

	require.Error(t, err)
	require.Contains(t, err.Error(), "db down")
}

func TestCheckPasswordNilAccount(t *testing.T) {
	require.False(t, CheckPassword(nil, "anything"))
	require.False(t, CheckPassword(fakeAccount{id: "x"}, "anything"))
}
