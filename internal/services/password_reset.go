package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"crimewatch/internal/models"
	"crimewatch/internal/repository"
	"crimewatch/internal/tasks"
	"crimewatch/internal/utils"
	"crimewatch/internal/validation"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

const resetTokenName = "password-reset"

// ResetNotifier mails password reset links.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, link string) error
}

type PasswordResetOptions struct {
	// Secret signs reset tokens.
	Secret  []byte
	TTL     time.Duration
	SiteURL string
}

// resetClaims is what a reset token carries. Stamp changes whenever the
// password does, so a token works once.
type resetClaims struct {
	UserID uint   `json:"uid"`
	Stamp  string `json:"stamp"`
}

// PasswordResetService issues and redeems signed, expiring reset links.
type PasswordResetService struct {
	users    *repository.UserRepo
	codec    *securecookie.SecureCookie
	notifier ResetNotifier
	tasks    tasks.Dispatcher
	siteURL  string
	log      *zap.SugaredLogger
}

func NewPasswordResetService(users *repository.UserRepo, notifier ResetNotifier, dispatcher tasks.Dispatcher,
	log *zap.SugaredLogger, opts PasswordResetOptions) *PasswordResetService {
	codec := securecookie.New(opts.Secret, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(opts.TTL / time.Second))
	return &PasswordResetService{
		users:    users,
		codec:    codec,
		notifier: notifier,
		tasks:    dispatcher,
		siteURL:  strings.TrimRight(opts.SiteURL, "/"),
		log:      log,
	}
}

// RequestReset mails a reset link when email belongs to an account. Unknown
// addresses succeed silently so the form does not reveal who is registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateResetRequest(email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			s.log.Infow("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := s.codec.Encode(resetTokenName, resetClaims{UserID: user.ID, Stamp: passwordStamp(user)})
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}
	link := s.siteURL + "/reset/" + token
	snapshot := *user
	s.tasks.Dispatch("password-reset-mail", func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, &snapshot, link)
	})
	s.log.Infow("password reset requested", "user_id", user.ID)
	return nil
}

// CheckToken returns the account token resets, or ErrInvalidResetToken when it
// is malformed, expired or already used.
func (s *PasswordResetService) CheckToken(ctx context.Context, token string) (*models.User, error) {
	var claims resetClaims
	if err := s.codec.Decode(resetTokenName, token, &claims); err != nil {
		return nil, ErrInvalidResetToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if claims.Stamp != passwordStamp(user) {
		return nil, ErrInvalidResetToken
	}
	return user, nil
}

// ResetPassword sets a new password for the account token belongs to.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, password1, password2 string) (*models.User, error) {
	user, err := s.CheckToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateNewPassword(password1, password2); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password1)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.Password = hash
	s.log.Infow("password reset", "user_id", user.ID)
	return user, nil
}

func passwordStamp(user *models.User) string {
	sum := sha256.Sum256([]byte(user.Password))
	return hex.EncodeToString(sum[:8])
}
