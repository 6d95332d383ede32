package user

import "context"

// Repository defines the interface for user data storage.
// Implementations return common.ErrNotFound and common.ErrConflict (wrapped)
// so the service can classify failures without knowing the driver.
type Repository interface {
	// CreateUser assigns the ID and timestamps. A duplicate email is ErrConflict,
	// decided by the store's own uniqueness constraint.
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]*User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}
