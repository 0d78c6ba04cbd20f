package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/common"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer       = "storefront-auth"
	maxUsernameLength = 50
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

type AuthService interface {
	Signup(ctx context.Context, username, password, address string, role models.Role) (*models.User, error)
	Signin(ctx context.Context, username, password string) (*models.SigninResponse, error)
	GenerateToken(user *models.User) (string, error)
	ValidateToken(token string) (*models.TokenClaims, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	log        *zap.Logger
}

func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, log *zap.Logger) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		log:        log,
	}
}

func (s *authService) Signup(ctx context.Context, username, password, address string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := common.ValidateRequiredString(username, "username", maxUsernameLength); err != nil {
		return nil, common.NewValidation("username", err.Error())
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, common.NewValidation("password", fmt.Sprintf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}
	if role == "" {
		role = models.RoleAdmin
	}
	if !role.Valid() {
		return nil, common.NewValidation("role", "role must be ADMIN or USER")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, common.NewInternal("Failed to create user", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Address:      address,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, common.NewConflict("Username already taken", err)
		}
		s.log.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return nil, common.NewInternal("Failed to create user", err)
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *authService) Signin(ctx context.Context, username, password string) (*models.SigninResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("User not found")
		}
		s.log.Error("failed to load user for signin", zap.Error(err))
		return nil, common.NewInternal("Failed to sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.NewForbidden("Incorrect password")
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, common.NewInternal("Failed to sign in", err)
	}
	return &models.SigninResponse{User: user, Token: token}, nil
}

// GenerateToken issues an HS256 access token carrying the user id and role
func (s *authService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := models.TokenClaims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, common.NewUnauthorized("Invalid or expired token")
	}
	return claims, nil
}
