package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rentloop/internal/config"
	"rentloop/internal/model"
	"rentloop/internal/repository"
)

// AuthService handles signup, login and bearer token issuance.
type AuthService struct {
	accounts repository.AccountRepository
	config   *config.Config

	// dummyHash is compared against when the email does not resolve to an
	// account, so login timing does not reveal whether the email exists.
	dummyHash []byte
}

func NewAuthService(accounts repository.AccountRepository, cfg *config.Config) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("rentloop-dummy-credential"), cfg.BcryptCost)
	if err != nil {
		// Only reachable with an out-of-range cost, which config clamps.
		dummy = []byte{}
	}
	return &AuthService{
		accounts:  accounts,
		config:    cfg,
		dummyHash: dummy,
	}
}

// Signup validates input, persists a new account and issues a token.
func (s *AuthService) Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if username == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: all fields are required", model.ErrValidation)
	}
	if !model.ValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", model.ErrValidation)
	}

	// Friendly pre-check so the caller learns which field conflicts. The
	// UNIQUE constraints still decide the race on concurrent signups.
	existing, err := s.accounts.FindByEmailOrUsername(ctx, email, username)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		if existing.Email == email {
			return nil, model.ErrEmailTaken
		}
		return nil, model.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &model.AuthResponse{Token: token, Account: account.Summary()}, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, model.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway to keep timing flat.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &model.AuthResponse{Token: token, Account: account.Summary()}, nil
}

// VerifyToken resolves a bearer token to an account id, failing closed on
// anything expired, malformed or signed with the wrong key.
func (s *AuthService) VerifyToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, model.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, model.ErrInvalidCredentials
	}

	raw, ok := claims["account_id"].(string)
	if !ok {
		return uuid.Nil, model.ErrInvalidCredentials
	}

	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.ErrInvalidCredentials
	}

	return accountID, nil
}

func (s *AuthService) issueToken(accountID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"account_id": accountID.String(),
		"exp":        now.Add(s.config.TokenMaxAge).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
