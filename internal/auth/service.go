package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/internal/users"
	pkgAuth "github.com/angelmondragon/mealshare-backend/pkg/auth"
	"github.com/angelmondragon/mealshare-backend/pkg/auth/session"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, rehash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Clock          func() time.Time
}

type service struct {
	users   userRepository
	session sessionManager
	jwtCfg  config.JWTConfig
	pwCfg   config.PasswordConfig
	logg    *logger.Logger
	now     func() time.Time

	// verified against when the account does not exist so both paths pay
	// for one argon2 derivation
	decoyHash string
}

// NewService builds the login flow: credential check, last-login stamp,
// access token and refresh session.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	decoy, err := security.HashPassword("mealshare-decoy-password", params.PasswordConfig)
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		users:     params.UserRepo,
		session:   params.SessionManager,
		jwtCfg:    params.JWTConfig,
		pwCfg:     params.PasswordConfig,
		logg:      params.Logger,
		now:       now,
		decoyHash: decoy,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, at, s.rehash(ctx, user, req.Password)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record login")
	}
	user.LastLoginAt = &at

	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, at, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, user.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, req LoginRequest) (*models.User, error) {
	user, err := s.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_, _ = security.VerifyPassword(req.Password, s.decoyHash)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// lookup returns (nil, nil) for an unknown account.
func (s *service) lookup(ctx context.Context, req LoginRequest) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		user, err = s.users.FindByEmail(ctx, users.NormalizeEmail(req.Email))
	case strings.TrimSpace(req.Username) != "":
		user, err = s.users.FindByUsername(ctx, req.Username)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email or username is required")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return user, nil
}

// rehash returns a fresh hash when the stored one predates the configured
// argon2 cost. Failure here never blocks the login.
func (s *service) rehash(ctx context.Context, user *models.User, password string) string {
	if !security.NeedsRehash(user.PasswordHash, s.pwCfg) {
		return ""
	}
	hash, err := security.HashPassword(password, s.pwCfg)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "auth.rehash_failed", err)
		}
		return ""
	}
	user.PasswordHash = hash
	return hash
}
