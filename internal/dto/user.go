package dto

import "github.com/synapsedt/synapsedt-api/internal/models"

// CreateUserRequest registers a new user account.
type CreateUserRequest struct {
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required,min=8"`
	FullName string          `json:"full_name" binding:"required"`
	Role     models.UserRole `json:"role" binding:"required"`
	LOB      *string         `json:"lob,omitempty"`
}

// UpdateUserRequest mutates an existing account.
type UpdateUserRequest struct {
	FullName *string          `json:"full_name,omitempty"`
	Role     *models.UserRole `json:"role,omitempty"`
	LOB      *string          `json:"lob,omitempty"`
	Active   *bool            `json:"active,omitempty"`
}
