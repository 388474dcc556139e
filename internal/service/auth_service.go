package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gradebook-api/internal/dto"
)

// ErrInvalidCredentials indicates the username or password did not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

const adminRole = "admin"

// AuthService issues admin bearer tokens.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error)
}

// AuthConfig carries the admin credentials and token settings.
type AuthConfig struct {
	Username     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
}

type authService struct {
	cfg       AuthConfig
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the admin authentication service.
func NewAuthService(cfg AuthConfig, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &authService{
		cfg:       cfg,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *authService) Login(_ context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}

	if s.cfg.PasswordHash == "" {
		s.logger.Warn().Msg("admin password hash not configured")
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	userMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(req.Password))
	if !userMatch || passErr != nil {
		s.logger.Warn().Str("username", req.Username).Msg("admin login rejected")
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  s.cfg.Username,
		"role": adminRole,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return dto.LoginResponse{}, err
	}

	s.logger.Info().Str("username", req.Username).Msg("admin logged in")
	return dto.LoginResponse{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}
