package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type userServiceFixture struct {
	service   *userService
	users     *mockUserRepository
	resets    *mockPasswordResetRepository
	notifier  *capturingNotifier
	tx        *passthroughTx
	jwtSecret string
}

func newUserServiceFixture() *userServiceFixture {
	f := &userServiceFixture{
		users:     newMockUserRepository(),
		resets:    newMockPasswordResetRepository(),
		notifier:  &capturingNotifier{},
		tx:        &passthroughTx{},
		jwtSecret: "test-secret-key",
	}
	f.service = NewUserService(
		f.users,
		f.resets,
		f.tx,
		NewPasswordHasher(testArgon2Params),
		f.notifier,
		UserServiceConfig{JWTSecret: f.jwtSecret, TokenExpiry: 15 * time.Minute, BaseURL: "http://shop.test"},
		zap.NewNop(),
	).(*userService)
	return f
}

// Feature: storefront, Property: Registration stores an Argon2id hash and the customer role
func TestProperty_RegistrationHashesPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are never stored as plaintext and role is customer", prop.ForAll(
		func(email, password, name string) bool {
			f := newUserServiceFixture()
			ctx := context.Background()

			user, err := f.service.Register(ctx, email, password, name, "")
			if err != nil {
				t.Logf("FAIL: registration failed: %v", err)
				return false
			}

			if user.PasswordHash == password || !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
				t.Logf("FAIL: password not hashed with argon2id")
				return false
			}

			if user.Role != domain.RoleCustomer {
				t.Logf("FAIL: role %q", user.Role)
				return false
			}

			stored, err := f.users.FindByEmail(ctx, email)
			return err == nil && stored.PasswordHash == user.PasswordHash
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property: Access tokens carry the session identity
func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access tokens contain user id, email, name and role", prop.ForAll(
		func(email, password, name string, admin bool) bool {
			f := newUserServiceFixture()
			ctx := context.Background()

			user, err := f.service.Register(ctx, email, password, name, "")
			if err != nil {
				return false
			}
			if admin {
				f.users.users[email].Role = domain.RoleAdmin
			}

			_, token, err := f.service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: login failed: %v", err)
				return false
			}

			claims, err := f.service.ValidateToken(token)
			if err != nil {
				t.Logf("FAIL: token validation failed: %v", err)
				return false
			}

			owner := claims.Owner()
			return owner.UserID == user.ID &&
				owner.Email == email &&
				owner.Name == name &&
				owner.IsAdmin() == admin
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "ada@example.com", "password123", "Ada", "")
	require.NoError(t, err)

	_, err = f.service.Register(ctx, "ada@example.com", "password456", "Ada", "")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	// exact match only
	_, err = f.service.Register(ctx, "Ada@example.com", "password456", "Ada", "")
	assert.NoError(t, err)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "ada@example.com", "password123", "Ada", "")
	require.NoError(t, err)

	_, _, err = f.service.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = f.service.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_UpgradesLegacyBcryptHash(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, &domain.User{
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
		FullName:     "Legacy",
		Role:         domain.RoleCustomer,
	}))

	_, _, err = f.service.Login(ctx, "legacy@example.com", "password123")
	require.NoError(t, err)

	stored, err := f.users.FindByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	// the upgraded hash still logs in
	_, _, err = f.service.Login(ctx, "legacy@example.com", "password123")
	assert.NoError(t, err)
}

func TestValidateToken_Rejections(t *testing.T) {
	f := newUserServiceFixture()

	_, err := f.service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(f.jwtSecret))
	require.NoError(t, err)
	_, err = f.service.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1})
	signed, err = foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = f.service.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func resetTokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestPasswordReset_SingleUse(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "ada@example.com", "password123", "Ada", "")
	require.NoError(t, err)

	require.NoError(t, f.service.RequestPasswordReset(ctx, "ada@example.com"))
	require.Len(t, f.notifier.links, 1)
	token := resetTokenFromLink(t, f.notifier.links[0])
	assert.Len(t, token, 64, "32 random bytes, hex encoded")

	require.NoError(t, f.service.ResetPassword(ctx, token, "new-password-1"))

	_, _, err = f.service.Login(ctx, "ada@example.com", "new-password-1")
	assert.NoError(t, err)
	_, _, err = f.service.Login(ctx, "ada@example.com", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	err = f.service.ResetPassword(ctx, token, "new-password-2")
	assert.ErrorIs(t, err, domain.ErrResetTokenNotFound)
	assert.True(t, domain.IsNotFound(err))
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "ada@example.com", "password123", "Ada", "")
	require.NoError(t, err)

	issuedAt := time.Now()
	f.service.now = func() time.Time { return issuedAt }
	require.NoError(t, f.service.RequestPasswordReset(ctx, "ada@example.com"))
	token := resetTokenFromLink(t, f.notifier.links[0])

	f.service.now = func() time.Time { return issuedAt.Add(PasswordResetExpiration + time.Second) }
	err = f.service.ResetPassword(ctx, token, "new-password-1")
	assert.ErrorIs(t, err, domain.ErrResetTokenNotFound)
}

func TestPasswordReset_NewRequestReplacesToken(t *testing.T) {
	f := newUserServiceFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, "ada@example.com", "password123", "Ada", "")
	require.NoError(t, err)

	require.NoError(t, f.service.RequestPasswordReset(ctx, "ada@example.com"))
	require.NoError(t, f.service.RequestPasswordReset(ctx, "ada@example.com"))
	first := resetTokenFromLink(t, f.notifier.links[0])
	second := resetTokenFromLink(t, f.notifier.links[1])

	assert.ErrorIs(t, f.service.ResetPassword(ctx, first, "new-password-1"), domain.ErrResetTokenNotFound)
	assert.NoError(t, f.service.ResetPassword(ctx, second, "new-password-1"))
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newUserServiceFixture()

	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.notifier.links)
}
