package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// PasswordResetExpiration is how long a reset link stays valid
	PasswordResetExpiration = time.Hour

	resetTokenBytes = 32
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// UserService defines the interface for account and credential logic
type UserService interface {
	Register(ctx context.Context, email, password, fullName, phone string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (user *domain.User, accessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Claims represents the JWT claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Owner converts token claims to the identity the request acts for
func (c *Claims) Owner() domain.Owner {
	return domain.Owner{UserID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
}

// ResetNotifier delivers password reset links
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *domain.User, link string) error
}

// LogResetNotifier writes reset links to the log instead of mailing them
type LogResetNotifier struct {
	Logger *zap.Logger
}

func (n LogResetNotifier) SendPasswordReset(ctx context.Context, user *domain.User, link string) error {
	n.Logger.Info("password reset link issued",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("link", link),
	)
	return nil
}

type userService struct {
	userRepo    repository.UserRepository
	resetRepo   repository.PasswordResetRepository
	tx          repository.Transactor
	hasher      *PasswordHasher
	notifier    ResetNotifier
	jwtSecret   string
	tokenExpiry time.Duration
	baseURL     string
	logger      *zap.Logger
	now         func() time.Time
}

// UserServiceConfig holds the settings of the user service
type UserServiceConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
	BaseURL     string
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	tx repository.Transactor,
	hasher *PasswordHasher,
	notifier ResetNotifier,
	cfg UserServiceConfig,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:    userRepo,
		resetRepo:   resetRepo,
		tx:          tx,
		hasher:      hasher,
		notifier:    notifier,
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: cfg.TokenExpiry,
		baseURL:     cfg.BaseURL,
		logger:      logger.Named("users"),
		now:         time.Now,
	}
}

// Register creates a customer account. Emails are matched exactly as stored.
func (s *userService) Register(ctx context.Context, email, password, fullName, phone string) (*domain.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Phone:        phone,
		Role:         domain.RoleCustomer,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies the credentials and returns a signed access token. Hashes made with bcrypt or
// weaker Argon2id parameters are replaced with the current policy on success.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, "", domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, "", domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return user, token, nil
}

// upgradeHash is best effort; a failure leaves the old hash usable
func (s *userService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("failed to store upgraded password hash", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	s.logger.Info("password hash upgraded", zap.Int64("user_id", user.ID))
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// RequestPasswordReset issues a fresh reset token, replacing any earlier one. Unknown emails are
// accepted silently so the endpoint does not reveal which accounts exist.
func (s *userService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     hex.EncodeToString(raw),
		ExpiresAt: s.now().Add(PasswordResetExpiration),
	}
	if err := s.resetRepo.Upsert(ctx, token); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.baseURL + "/password/reset?token=" + url.QueryEscape(token.Token)
	if err := s.notifier.SendPasswordReset(ctx, user, link); err != nil {
		return fmt.Errorf("failed to send reset link: %w", err)
	}

	return nil
}

// ResetPassword redeems a reset token. Used or expired tokens are reported as not found.
func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		resetToken, err := s.resetRepo.FindUsable(ctx, token, now)
		if err != nil {
			return err
		}

		if err := s.userRepo.UpdatePasswordHash(ctx, resetToken.UserID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		if err := s.resetRepo.MarkUsed(ctx, resetToken.ID, now); err != nil {
			return err
		}

		s.logger.Info("password reset completed", zap.Int64("user_id", resetToken.UserID))
		return nil
	})
}

func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.FullName,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
