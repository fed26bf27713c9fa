package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domuser "github.com/yungbote/scoolish-backend/internal/domain/user"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func AuthConfigFromEnv() AuthConfig {
	return AuthConfig{
		Secret:     envutil.String("JWT_SECRET_KEY", "change-me"),
		AccessTTL:  envutil.Duration("ACCESS_TOKEN_TTL", time.Hour, time.Second),
		RefreshTTL: envutil.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour, time.Second),
	}
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type AuthService interface {
	Register(dbc dbctx.Context, username, email, password string) (*types.User, error)
	Login(dbc dbctx.Context, login, password string) (*types.User, *Tokens, error)
	Refresh(dbc dbctx.Context, refreshToken string) (*Tokens, error)
	// Authenticate validates an access token and returns its subject.
	Authenticate(token string) (string, error)
	Me(dbc dbctx.Context, userID string) (*types.User, error)
}

type authService struct {
	log   *logger.Logger
	users repos.UserRepo
	cfg   AuthConfig
	now   func() time.Time
}

func NewAuthService(baseLog *logger.Logger, users repos.UserRepo, cfg AuthConfig) AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &authService{
		log:   baseLog.With("service", "AuthService"),
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *authService) Register(dbc dbctx.Context, username, email, password string) (*types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case len(username) < 3 || len(username) > 50:
		return nil, apierr.BadRequest("invalid_username", "username must be 3-50 characters")
	case !validEmail(email):
		return nil, apierr.BadRequest("invalid_email", "invalid email address")
	case len(password) < 8:
		return nil, apierr.BadRequest("weak_password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &types.User{
		Username:         username,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             "user",
		OnboardingStatus: domuser.OnboardingPending,
	}
	if err := s.users.Create(dbc, u); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			return nil, apierr.New(http.StatusConflict, "user_exists", errors.New("username or email already registered"))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("User registered", "user_id", u.ID)
	return u, nil
}

func (s *authService) Login(dbc dbctx.Context, login, password string) (*types.User, *Tokens, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return nil, nil, apierr.BadRequest("missing_credentials", "username and password are required")
	}
	u, err := s.users.GetByLogin(dbc, login)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("%w: invalid username or password", apierr.ErrUnauthorized))
	}
	tokens, err := s.issue(u.ID.String())
	if err != nil {
		return nil, nil, err
	}
	return u, tokens, nil
}

func (s *authService) Refresh(dbc dbctx.Context, refreshToken string) (*Tokens, error) {
	sub, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.Me(dbc, sub)
	if err != nil {
		return nil, err
	}
	return s.issue(u.ID.String())
}

func (s *authService) Authenticate(token string) (string, error) {
	return s.parse(token, tokenTypeAccess)
}

func (s *authService) Me(dbc dbctx.Context, userID string) (*types.User, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_identity", fmt.Errorf("%w: invalid token identity", apierr.ErrUnauthorized))
	}
	u, err := s.users.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, apierr.NotFound("user_not_found", "user not found")
	}
	return u, nil
}

func (s *authService) issue(sub string) (*Tokens, error) {
	access, err := s.sign(sub, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(sub, tokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func (s *authService) sign(sub, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *authService) parse(token, wantType string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apierr.New(http.StatusUnauthorized, "missing_token", fmt.Errorf("%w: token is missing", apierr.ErrUnauthorized))
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "token_expired"
		}
		return "", apierr.New(http.StatusUnauthorized, code, fmt.Errorf("%w: %v", apierr.ErrUnauthorized, err))
	}
	if claims.Type != wantType || claims.Subject == "" {
		return "", apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("%w: wrong token type", apierr.ErrUnauthorized))
	}
	return claims.Subject, nil
}

func validEmail(s string) bool {
	if s == "" || len(s) > 120 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
