package user

import "context"

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	ListUsers(ctx context.Context, page, limit int) (*Page, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RegisterRequest holds the data for registering a user.
type RegisterRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Company  string   `json:"company" validate:"required"`
	Roles    []string `json:"role" validate:"dive,required"`
}

// UpdateUserRequest is a partial update. Only non-nil fields are changed.
type UpdateUserRequest struct {
	Name     *string   `json:"name,omitempty" validate:"omitnil,min=1"`
	Email    *string   `json:"email,omitempty" validate:"omitnil,email"`
	Password *string   `json:"password,omitempty" validate:"omitnil,min=1"`
	Company  *string   `json:"company,omitempty" validate:"omitnil,min=1"`
	Roles    *[]string `json:"role,omitempty" validate:"omitnil,dive,required"`
}
