package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bank-assist/internal/domain"
	"bank-assist/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService autentica usuarios demo por PIN (bcrypt).
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{logger: logger, users: users}
}

// Authenticate valida user id + PIN contra el hash guardado.
// Devuelve ErrInvalidCredentials tanto para usuario inexistente como
// para PIN incorrecto; el caller no distingue los casos.
func (s *UserService) Authenticate(ctx context.Context, userID, pin string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	pin = strings.TrimSpace(pin)
	if userID == "" || pin == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)); err != nil {
		s.logger.Warn("pin mismatch", zap.String("user_id", userID))
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}
