package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims represents the JWT claims. Subject holds the user id and ID the token id.
type Claims struct {
	Email string            `json:"email"`
	Role  entities.UserRole `json:"role"`
	Type  string            `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService handles authentication operations
type AuthService struct {
	users     *UserService
	revoked   ports.TokenRevocationStore
	jwtConfig config.JWTConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users *UserService, revoked ports.TokenRevocationStore, jwtConfig config.JWTConfig, logger *logger.Logger) *AuthService {
	return &AuthService{
		users:     users,
		revoked:   revoked,
		jwtConfig: jwtConfig,
		logger:    logger.WithComponent("auth"),
		now:       time.Now,
	}
}

var _ ports.AuthService = (*AuthService)(nil)

// Register creates a new account and signs it in
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	user, err := s.users.Create(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User registered", "user_id", user.ID, "email", user.Email)
	return s.issuePair(user)
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			s.logger.LogSecurityEvent("login_unknown_email", "", "", map[string]interface{}{"email": req.Email})
			return nil, entities.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.users.VerifyPassword(user, req.Password) {
		s.logger.LogSecurityEvent("login_bad_password", user.ID.String(), "", nil)
		return nil, entities.ErrInvalidCredentials
	}

	s.logger.Infow("User logged in", "user_id", user.ID)
	return s.issuePair(user)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked so it cannot be used twice.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResponse, error) {
	claims, err := s.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issuePair(user)
}

// Logout revokes a refresh token. Access tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.logger.Infow("User logged out", "user_id", claims.Subject)
	return nil
}

// Authenticate resolves an access token to the current user record
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*entities.User, error) {
	claims, err := s.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, entities.ErrInvalidToken
	}
	return s.userFromClaims(ctx, claims)
}

// UpdateProfile delegates to the credential store
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req ports.UpdateProfileRequest) (*entities.User, error) {
	return s.users.UpdateProfile(ctx, userID, req)
}

// IssueAccessToken signs a short-lived access token for user
func (s *AuthService) IssueAccessToken(user *entities.User) (string, error) {
	return s.sign(user, TokenTypeAccess, s.jwtConfig.ExpiresIn)
}

// IssueRefreshToken signs a long-lived refresh token for user
func (s *AuthService) IssueRefreshToken(user *entities.User) (string, error) {
	return s.sign(user, TokenTypeRefresh, s.jwtConfig.RefreshExpiresIn)
}

// Verify checks the signature and expiry of a token and returns its claims
func (s *AuthService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, entities.ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefresh verifies a refresh token and rejects revoked ones
func (s *AuthService) VerifyRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.ID == "" {
		return nil, entities.ErrInvalidToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if revoked {
		s.logger.LogSecurityEvent("refresh_token_reuse", claims.Subject, "", map[string]interface{}{"jti": claims.ID})
		return nil, entities.ErrInvalidToken
	}

	return claims, nil
}

func (s *AuthService) userFromClaims(ctx context.Context, claims *Claims) (*entities.User, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, entities.ErrInvalidToken
	}

	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) issuePair(user *entities.User) (*ports.AuthResponse, error) {
	accessToken, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &ports.AuthResponse{
		User:         user,
		Token:        accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) sign(user *entities.User, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		Email: user.Email,
		Role:  user.Role,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.jwtConfig.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
