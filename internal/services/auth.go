package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mindmap-dev/mindmap/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PasswordCost is the bcrypt work factor for stored passwords.
const PasswordCost = 10

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// AuthService implements the signup and email confirmation flow and password
// login against the users table.
type AuthService struct {
	db     *gorm.DB
	mailer Mailer
	appURL string
	log    *logrus.Logger
}

func NewAuthService(db *gorm.DB, mailer Mailer, appURL string, log *logrus.Logger) *AuthService {
	return &AuthService{
		db:     db,
		mailer: mailer,
		appURL: strings.TrimRight(appURL, "/"),
		log:    log,
	}
}

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ConfirmationLink builds the link mailed to a new user.
func (s *AuthService) ConfirmationLink(email string) string {
	return s.appURL + "/confirm?email=" + url.QueryEscape(email)
}

// Signup creates an unconfirmed user and mails the confirmation link. The
// insert and the delivery share a transaction: when the mail cannot be sent
// the row is rolled back and ErrMailDelivery is returned. Concurrent signups
// for the same address are settled by the unique index on email.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := NormalizeEmail(in.Email)

	if username == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	var existing models.User

	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error

	if err == nil {
		return nil, ErrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), PasswordCost)

	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		mailErr := s.mailer.SendConfirmation(ctx, ConfirmationEmail{
			To:       email,
			Username: username,
			Link:     s.ConfirmationLink(email),
		})

		if mailErr != nil {
			s.log.WithError(mailErr).WithField("email", email).Error("Error sending confirmation email")
			return fmt.Errorf("%w: %v", ErrMailDelivery, mailErr)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Confirm marks the user confirmed. Confirming twice is not an error.
func (s *AuthService) Confirm(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)

	if err != nil {
		return err
	}

	if user.Confirmed {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(user).Update("confirmed", true).Error; err != nil {
		return fmt.Errorf("failed to confirm user: %w", err)
	}

	return nil
}

func (s *AuthService) IsConfirmed(ctx context.Context, email string) (bool, error) {
	if NormalizeEmail(email) == "" {
		return false, ErrMissingFields
	}

	user, err := s.findByEmail(ctx, email)

	if err != nil {
		return false, err
	}

	return user.Confirmed, nil
}

// Login checks the confirmation flag before the password, so an unconfirmed
// account never reaches the hash comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if NormalizeEmail(email) == "" || password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.findByEmail(ctx, email)

	if err != nil {
		return nil, err
	}

	if !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrIncorrectPassword
	}

	return user, nil
}

// FindUser resolves a user by primary key.
func (s *AuthService) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)

	if email == "" {
		return nil, ErrUserNotFound
	}

	var user models.User

	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}
