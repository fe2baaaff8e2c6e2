package repositories

import (
	"testing"

	"med-lab/errors"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	id, err := repo.CreateUser("jane@example.org", "$argon2id$fake-hash")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repo.GetUserByEmail("jane@example.org")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("jane@example.org", user.Email)
	req.Equal("$argon2id$fake-hash", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)

	// Duplicate email is rejected inside the transaction
	_, err = repo.CreateUser("jane@example.org", "other-hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	_, err = repo.GetUserByEmail("nobody@example.org")
	req.Error(err)
}
