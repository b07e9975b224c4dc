package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/utils"
	"shopfront_back_end/internal/validation"
)

type AuthResult struct {
	User  *models.User
	Token string
}

type UserService struct {
	users  UserStore
	tokens TokenIssuer
}

func NewUserService(users UserStore, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if res := validation.Register(name, email, password); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.Conflict("User already exists")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     models.RoleUser,
		CartData: models.NewCartData(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.GenerateUserToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GenerateUserToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// AdminLogin authenticates like Login and additionally requires the admin role.
func (s *UserService) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, apperr.Forbidden("Access Denied - Admin role required")
	}
	token, err := s.tokens.GenerateAdminToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if res := validation.Login(email, password); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("User doesn't exist")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil && !errors.Is(err, utils.ErrInvalidHash) {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidCredentials("Invalid credentials")
	}
	return user, nil
}
