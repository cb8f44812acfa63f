package services

import (
	"context"
	"fmt"

	"crimewatch/internal/models"
	"crimewatch/internal/repository"
	"crimewatch/internal/tasks"
	"crimewatch/internal/utils"
	"crimewatch/internal/validation"

	"go.uber.org/zap"
)

// AccountNotifier receives the mails sent after a registration.
type AccountNotifier interface {
	SendWelcome(ctx context.Context, user *models.User) error
	NotifyRegistration(ctx context.Context, user *models.User) error
}

type UserService struct {
	users    *repository.UserRepo
	notifier AccountNotifier
	tasks    tasks.Dispatcher
	log      *zap.SugaredLogger
}

func NewUserService(users *repository.UserRepo, notifier AccountNotifier, dispatcher tasks.Dispatcher, log *zap.SugaredLogger) *UserService {
	return &UserService{users: users, notifier: notifier, tasks: dispatcher, log: log}
}

// Register creates a citizen account and schedules the welcome mail and the
// staff notice. Mail failures never reach the caller.
func (s *UserService) Register(ctx context.Context, form validation.RegistrationForm) (*models.User, error) {
	user, err := s.create(ctx, form, false)
	if err != nil {
		return nil, err
	}
	s.log.Infow("user registered", "user_id", user.ID, "username", user.Username)

	snapshot := *user
	s.tasks.Dispatch("welcome-mail", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, &snapshot)
	})
	s.tasks.Dispatch("notify-registration", func(ctx context.Context) error {
		return s.notifier.NotifyRegistration(ctx, &snapshot)
	})
	return user, nil
}

// CreateStaff creates an account that receives staff broadcasts. No mail is sent.
func (s *UserService) CreateStaff(ctx context.Context, form validation.RegistrationForm) (*models.User, error) {
	user, err := s.create(ctx, form, true)
	if err != nil {
		return nil, err
	}
	s.log.Infow("staff user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserService) create(ctx context.Context, form validation.RegistrationForm, staff bool) (*models.User, error) {
	form.Normalize()
	if err := validation.ValidateRegistration(ctx, form, s.users); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(form.Password1)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username: form.Username,
		Email:    form.Email,
		Password: hash,
		IsStaff:  staff,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, s.duplicateError(ctx, form, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// duplicateError turns a unique index violation from a concurrent registration
// back into the field error validation would have reported.
func (s *UserService) duplicateError(ctx context.Context, form validation.RegistrationForm, cause error) error {
	var errs validation.Errors
	if ok, _ := s.users.UsernameExists(ctx, form.Username); ok {
		errs.Add("username", validation.ErrDuplicateUsername)
	}
	if ok, _ := s.users.EmailExists(ctx, form.Email); ok {
		errs.Add("email", validation.ErrDuplicateEmail)
	}
	if len(errs) == 0 {
		return fmt.Errorf("create user: %w", cause)
	}
	return errs
}

// Authenticate returns the user whose credentials match, or ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	return s.users.ListStaff(ctx)
}
