package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/model"
)

// TokenType distinguishes candidate vs admin tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeAdmin     TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    string    `json:"user_id"`
}

// ProfileID parses the profile UUID carried by the token.
func (c *Claims) ProfileID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

type profileReader interface {
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	profiles profileReader
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, profiles profileReader) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, profiles: profiles}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies the credentials and issues a token. The new token replaces
// any session the profile had before.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if err := s.CheckPassword(profile.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(ctx, profile)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, Profile: *profile}, nil
}

// GenerateToken signs a JWT for the profile and registers its ID as the
// profile's only valid session.
func (s *AuthService) GenerateToken(ctx context.Context, profile *model.Profile) (string, error) {
	jti := uuid.New().String()
	signed, err := s.SignToken(profile, jti, time.Now())
	if err != nil {
		return "", err
	}

	sessionKey := config.CacheKey.LoginSessionKey(profile.ID.String())
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

// SignToken builds and signs the JWT without touching the session registry.
func (s *AuthService) SignToken(profile *model.Profile, jti string, now time.Time) (string, error) {
	tokenType := TokenTypeCandidate
	if profile.Role == model.RoleAdmin {
		tokenType = TokenTypeAdmin
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   profile.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: tokenType,
		UserID:    profile.ID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession checks that the token's JTI matches the active session in Redis.
func (s *AuthService) ValidateSession(ctx context.Context, profileID, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.LoginSessionKey(profileID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Me returns the profile behind a token.
func (s *AuthService) Me(ctx context.Context, profileID uuid.UUID) (*model.Profile, error) {
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Logout removes the profile's session so its current token stops working.
func (s *AuthService) Logout(ctx context.Context, profileID string) error {
	return s.rdb.Del(ctx, config.CacheKey.LoginSessionKey(profileID)).Err()
}
