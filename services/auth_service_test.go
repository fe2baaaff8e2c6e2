package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"med-lab/auth"
	"med-lab/errors"
	"med-lab/repositories"

	"github.com/stretchr/testify/require"
)

// fakeUserRepository keeps users in a map and records the stored hashes.
type fakeUserRepository struct {
	users  map[string]repositories.User
	nextID string
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]repositories.User), nextID: "user-uuid"}
}

func (f *fakeUserRepository) CreateUser(email, hashedPassword string) (string, error) {
	if _, ok := f.users[email]; ok {
		return "", errors.ErrUserAlreadyExists
	}
	f.users[email] = repositories.User{
		ID:           f.nextID,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
	}
	return f.nextID, nil
}

func (f *fakeUserRepository) GetUserByEmail(email string) (repositories.User, error) {
	user, ok := f.users[email]
	if !ok {
		return repositories.User{}, fmt.Errorf("not found")
	}
	return user, nil
}

func newTestAuthService(repo repositories.IUserRepository) IAuthService {
	return NewAuthService(repo, auth.NewTokenManager("unit-test-secret", time.Hour))
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		repo := newFakeUserRepository()
		svc := newTestAuthService(repo)

		token, err := svc.Register("test@example.com", "ComplexPass123!")
		req.NoError(err)
		req.NotEmpty(token)

		// The repository never sees the plain password
		stored := repo.users["test@example.com"]
		req.True(strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
		req.NotContains(stored.PasswordHash, "ComplexPass123!")
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		svc := newTestAuthService(newFakeUserRepository())

		_, err := svc.Register("test@example.com", "weak")
		req.ErrorIs(err, errors.ErrInvalidPassword)
	})

	t.Run("should propagate duplicate email", func(t *testing.T) {
		req := require.New(t)
		svc := newTestAuthService(newFakeUserRepository())

		_, err := svc.Register("test@example.com", "ComplexPass123!")
		req.NoError(err)
		_, err = svc.Register("test@example.com", "ComplexPass123!")
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Run("should login with the registered password", func(t *testing.T) {
		req := require.New(t)
		repo := newFakeUserRepository()
		svc := newTestAuthService(repo)

		_, err := svc.Register("test@example.com", "ComplexPass123!")
		req.NoError(err)

		token, err := svc.Login("test@example.com", "ComplexPass123!")
		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should return a generic error on wrong password", func(t *testing.T) {
		req := require.New(t)
		repo := newFakeUserRepository()
		svc := newTestAuthService(repo)

		_, err := svc.Register("test@example.com", "ComplexPass123!")
		req.NoError(err)

		_, err = svc.Login("test@example.com", "WrongPass123!")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return the same generic error on unknown email", func(t *testing.T) {
		req := require.New(t)
		svc := newTestAuthService(newFakeUserRepository())

		_, err := svc.Login("nobody@example.com", "ComplexPass123!")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
