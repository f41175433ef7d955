package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fmorante/lexagenda-be/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(id string) (models.User, error)
	CreateUser(username, email, password, organizationID string) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	var createdAt string
	row := s.db.QueryRow("SELECT id, username, email, organization_id, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.OrganizationID, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("user with ID %s not found", id)
		}
		return models.User{}, err
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		user.CreatedAt = ts
	}
	return user, nil
}

// CreateUser creates a new user inside an organization, hashing their password.
func (s *UserService) CreateUser(username, email, password, organizationID string) (models.User, error) {
	if organizationID == "" {
		return models.User{}, fmt.Errorf("organization id is required")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		OrganizationID: organizationID,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = s.db.Exec(
		"INSERT INTO users (id, username, email, organization_id, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.OrganizationID, string(hashedPassword),
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(email, password string) (models.User, error) {
	var user models.User
	var createdAt string
	row := s.db.QueryRow("SELECT id, username, email, organization_id, password_hash, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.OrganizationID, &user.PasswordHash, &createdAt)
	if err != nil {
		return models.User{}, fmt.Errorf("authentication failed: user not found")
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		user.CreatedAt = ts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password")
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}
