package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"campus/internal/auth"
	"campus/internal/config"
	"campus/internal/domain"
)

const verificationTTL = 48 * time.Hour

// Service handles account lifecycle and token issuance.
type Service struct {
	repo   *Repository
	cfg    config.App
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the service.
func NewService(repo *Repository, cfg config.App, logger *zap.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// validUserType rejects roles outside the platform's three.
func validUserType(t string) error {
	switch t {
	case auth.RoleAdmin, auth.RoleProfessor, auth.RoleStudent:
		return nil
	}
	return domain.Validation("type", "type must be admin, professor or student")
}

// Create registers a pending user and issues a verification token. The token
// is returned to the caller; there is no mail delivery.
func (s *Service) Create(ctx context.Context, name, email, userType string) (*User, *Verification, error) {
	if err := validUserType(userType); err != nil {
		return nil, nil, err
	}
	existing, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, domain.Conflict("email already registered")
	}

	user := &User{Name: name, Email: email, Type: userType, Status: StatusPending}
	verification := &Verification{
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(verificationTTL),
	}
	if err := s.repo.CreateUser(ctx, user, verification); err != nil {
		return nil, nil, err
	}

	s.logger.Info("user created",
		zap.Int64("user_id", user.ID),
		zap.String("type", user.Type))
	return user, verification, nil
}

// Verify consumes a verification token, sets the password and activates the
// account.
func (s *Service) Verify(ctx context.Context, token, password string) (*User, error) {
	if len(password) < 8 {
		return nil, domain.Validation("password", "password must be at least 8 characters")
	}
	verification, err := s.repo.VerificationByToken(ctx, token, s.now())
	if err != nil {
		return nil, err
	}
	if verification == nil {
		return nil, domain.NotFound("verification token not found or expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.ActivateUser(ctx, verification.UserID, string(hash), verification.ID); err != nil {
		return nil, err
	}

	s.logger.Info("user activated", zap.Int64("user_id", verification.UserID))
	return s.repo.UserByID(ctx, verification.UserID)
}

// Login checks credentials and issues a token pair. The refresh token is
// persisted so it can be rotated and revoked.
func (s *Service) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	user, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if user == nil || user.Status != StatusActive {
		return auth.TokenPair{}, domain.Validation("email", "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return auth.TokenPair{}, domain.Validation("email", "invalid credentials")
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token into a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := auth.Parse(refreshToken, s.cfg.JWTSigningKey, s.cfg.JWTIssuer)
	if err != nil {
		return auth.TokenPair{}, domain.Validation("refresh_token", "invalid refresh token")
	}
	stored, err := s.repo.RefreshTokenLive(ctx, refreshToken, s.now())
	if err != nil {
		return auth.TokenPair{}, err
	}
	if stored == nil {
		return auth.TokenPair{}, domain.Validation("refresh_token", "refresh token revoked or expired")
	}

	user, err := s.repo.UserByID(ctx, stored.UserID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if user == nil || user.Status != StatusActive {
		return auth.TokenPair{}, domain.Validation("refresh_token", "invalid refresh token")
	}
	if user.Type != claims.Role {
		s.logger.Warn("refresh token role drift",
			zap.Int64("user_id", user.ID),
			zap.String("claim_role", claims.Role))
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return auth.TokenPair{}, err
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *User) (auth.TokenPair, error) {
	pair, err := auth.Issue(fmt.Sprintf("%d", user.ID), user.Type,
		s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.repo.SaveRefreshToken(ctx, &RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExp,
	}); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound("user not found")
	}
	return user, nil
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}
