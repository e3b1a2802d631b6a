package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("test-secret", 15)
	// Minimum cost keeps hashing fast in tests.
	return NewAuthService(store.Users(), tokens, 4, zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "s3cret",
		Role:     domain.RoleCustomer,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", registered.User.Email)
	assert.NotEmpty(t, registered.Token)

	logged, err := svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, logged.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestRegisterDefaultsToCustomer(t *testing.T) {
	svc := newAuthFixture(t)

	result, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, result.User.Role)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dup@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "dup@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "x@example.com", Password: "pw"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "X", Email: "x@example.com", Password: "pw", Role: "superuser"})
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.ToDomainError(err).Code)
}
