package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PublicUserDTO is what other users get to see.
type PublicUserDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func PublicFromModels(rows []models.User) []PublicUserDTO {
	out := make([]PublicUserDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, PublicUserDTO{ID: row.ID, Username: row.Username})
	}
	return out
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     NormalizeUsername(c.Username),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
	}
}

// NormalizeUsername lowercases and trims so lookups are case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
