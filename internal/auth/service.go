package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/chepyr/go-task-tracker/internal/db"
	"github.com/chepyr/go-task-tracker/internal/models"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AccountService registers users and checks their credentials. It keeps no
// session state: Login hands the identity back and the caller holds on to it.
type AccountService struct {
	store  *db.Store
	hasher Hasher
}

func NewAccountService(store *db.Store, hasher Hasher) *AccountService {
	return &AccountService{store: store, hasher: hasher}
}

func (s *AccountService) Register(ctx context.Context, email, password, displayName string) (models.PublicUser, error) {
	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)

	if err := validateRegistration(email, password, displayName); err != nil {
		return models.PublicUser{}, err
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return models.PublicUser{}, models.NewValidationError("password", "must be at most 72 bytes")
	}
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return models.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	err = s.store.WithTx(ctx, func(repos db.Repos) error {
		return repos.Users.Create(ctx, user)
	})
	if errors.Is(err, db.ErrUniqueViolation) {
		return models.PublicUser{}, models.ErrDuplicateEmail
	}
	if err != nil {
		log.Printf("Error saving user %s: %v", email, err)
		return models.PublicUser{}, models.StorageError("create user", err)
	}

	log.Printf("User registered: %s", user.Email)
	return user.Public(), nil
}

// Login never says whether the email or the password was wrong.
func (s *AccountService) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.PublicUser{}, models.ErrInvalidCredentials
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		log.Printf("Login attempt for unknown email: %s", email)
		return models.PublicUser{}, models.ErrInvalidCredentials
	}
	if err != nil {
		log.Printf("Error retrieving user by email %s: %v", email, err)
		return models.PublicUser{}, models.StorageError("get user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Printf("Invalid password for email: %s", email)
		return models.PublicUser{}, models.ErrInvalidCredentials
	}

	log.Printf("User logged in: %s", email)
	return user.Public(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(email, password, displayName string) error {
	if email == "" {
		return models.NewValidationError("email", "is required")
	}
	if !isValidEmail(email) {
		return models.NewValidationError("email", "is not a valid address")
	}
	if password == "" {
		return models.NewValidationError("password", "is required")
	}
	if displayName == "" {
		return models.NewValidationError("display_name", "is required")
	}
	return nil
}

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
