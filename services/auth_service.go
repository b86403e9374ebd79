package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/repositories"
	"listings-api/utils"
)

const (
	minUsernameLen = 3
	minPasswordLen = 4
	// contraseña por defecto sobre la que avisa el alta del admin
	defaultAdminPassword = "1234"
)

// AuthService define la interfaz para el login de la oficina
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	// Logout revoca el token hasta que expire por sí solo
	Logout(claims *utils.Claims)
	ValidateToken(token string) (*utils.Claims, error)
	Me(ctx context.Context, userID uint) (*domain.User, error)
	// EnsureAdmin crea el usuario admin si todavía no hay usuarios
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*domain.User, error)
	ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error
}

type authService struct {
	repo     repositories.UserRepository
	jwt      *utils.JWTManager
	denylist *ccache.Cache[bool]
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(repo repositories.UserRepository, jwt *utils.JWTManager, logger *zap.Logger) AuthService {
	return &authService{
		repo:     repo,
		jwt:      jwt,
		denylist: ccache.New(ccache.Configure[bool]().MaxSize(10000)),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	// 1. Buscar el usuario (usuario inexistente y contraseña incorrecta dan el mismo error)
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Info("login rejected", zap.String("username", req.Username))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	// 2. Verificar la contraseña contra el hash bcrypt
	ok, err := utils.VerifyPassword(user.Password, req.Password)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	if !ok {
		s.logger.Info("login rejected", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	// 3. Generar el token
	token, claims, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	// 4. Guardar la hora de login y actualizar hashes viejos
	// (si falla, el login sigue igual)
	now := s.now()
	user.LastLoginAt = &now
	if utils.NeedsRehash(user.Password) {
		if hash, err := utils.HashPassword(req.Password); err == nil {
			user.Password = hash
		}
	}
	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.Warn("record last login failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	s.logger.Info("user logged in", zap.String("username", user.Username))
	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      *user,
	}, nil
}

func (s *authService) Logout(claims *utils.Claims) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return
	}
	s.denylist.Set(claims.ID, true, ttl)
	s.logger.Info("user logged out", zap.String("username", claims.Username))
}

func (s *authService) ValidateToken(token string) (*utils.Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if item := s.denylist.Get(claims.ID); item != nil && !item.Expired() {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *authService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.CreateUser(ctx, dto.CreateUserRequest{Username: username, Password: password}); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	if password == defaultAdminPassword {
		s.logger.Warn("admin user created with the default password; change it with `user passwd`",
			zap.String("username", username))
	} else {
		s.logger.Info("admin user created", zap.String("username", username))
	}
	return true, nil
}

func (s *authService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*domain.User, error) {
	// 1. Validar datos de entrada
	username := strings.TrimSpace(req.Username)
	if len(username) < minUsernameLen {
		return nil, validationErrorf("username must have at least %d characters", minUsernameLen)
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}

	// 2. El username debe ser único
	_, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, validationErrorf("username %q already exists", username)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("load user: %w", err)
	}

	// 3. Guardar solo el hash
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{Username: username, Password: hash}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error {
	if err := checkPassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = hash
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("password changed", zap.String("username", user.Username))
	return nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return validationErrorf("password must have at least %d characters", minPasswordLen)
	}
	if len(password) > utils.MaxPasswordBytes {
		return validationErrorf("password must have at most %d bytes", utils.MaxPasswordBytes)
	}
	return nil
}
