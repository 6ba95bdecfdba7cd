package services

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// MinAdminPasswordLength is the shortest accepted admin password
const MinAdminPasswordLength = 8

// AdminService checks the configured admin credentials
type AdminService struct {
	username     string
	passwordHash []byte
	logger       zerolog.Logger
}

// NewAdminService hashes password once so the plain text is not kept in memory
func NewAdminService(username, password string) (*AdminService, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if len(password) < MinAdminPasswordLength {
		return nil, fmt.Errorf("admin password must be at least %d characters", MinAdminPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &AdminService{
		username:     username,
		passwordHash: hash,
		logger:       logging.NewLogger("admin"),
	}, nil
}

// Username returns the configured admin username
func (as *AdminService) Username() string {
	return as.username
}

// Authenticate returns ErrInvalidCredentials unless both username and password match
func (as *AdminService) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(as.username)) == 1
	// bcrypt runs even when the username is wrong
	passErr := bcrypt.CompareHashAndPassword(as.passwordHash, []byte(password))

	if !userOK || passErr != nil {
		as.logger.Warn().Str("username", username).Msg("admin login rejected")
		return ErrInvalidCredentials
	}

	as.logger.Info().Str("username", username).Msg("admin logged in")
	return nil
}
