package user

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "user not found")
	ErrEmailAlreadyUsed   = apperror.New(http.StatusConflict, "email already used")
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid email or password")
	// Same message as ErrInvalidCredentials so a login does not reveal which check failed.
	ErrInactiveUser = apperror.New(http.StatusUnauthorized, "invalid email or password")
	ErrInvalidInput = apperror.New(http.StatusBadRequest, "invalid user input")
	ErrSelfDemotion = apperror.New(http.StatusUnprocessableEntity, "admins cannot revoke their own admin access")
)

// User represents an account. Hosts own resources; any user may book.
type User struct {
	ID            string // UUID
	Email         string
	PasswordHash  string
	DisplayName   *string
	CreatedAt     time.Time
	LastLoginAt   *time.Time
	IsActive      bool
	IsSystemAdmin bool
}

// Filter defines filter options for listing users.
type Filter struct {
	Email       string
	DisplayName string
	IsActive    *bool // Use pointer to distinguish between false and nil (not set)

	Page      int
	PageSize  int
	SortBy    string // created_at | email | display_name
	SortOrder string
}

// UpdateRequest carries the fields an admin may change.
type UpdateRequest struct {
	DisplayName   *string
	IsActive      *bool
	IsSystemAdmin *bool
}
