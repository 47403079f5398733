package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserService(db *sql.DB, logger zerolog.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: logger,
	}
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT username, email, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Error fetching user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &user, nil
}

// Create inserts a new user. The username is the primary key, so a
// concurrent duplicate registration fails here with ErrConflict.
func (s *UserService) Create(ctx context.Context, username, password, email string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, validationError("username and password are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)",
		username, string(hashedPassword), email,
	)
	if isDuplicateKey(err) {
		return nil, ErrConflict
	}
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("User registered")
	return &models.User{Username: username, Email: email, PasswordHash: string(hashedPassword)}, nil
}

func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Failed authentication attempt")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
