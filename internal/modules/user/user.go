package user

import (
	"time"
)

// User is the stored user record. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Company      string    `json:"company"`
	Roles        []string  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the public projection of a User.
type Summary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Company string   `json:"company"`
	Roles   []string `json:"role"`
}

func (u *User) Summary() Summary {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return Summary{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Company: u.Company,
		Roles:   roles,
	}
}

// Page is one page of users plus the total record count.
type Page struct {
	Data  []Summary `json:"data"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// UserUpdate lists the mutable fields of a stored user. Nil fields are left untouched.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Company      *string
	Roles        *[]string
}

func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil && u.Company == nil && u.Roles == nil
}

// apply copies the set fields onto usr.
func (u UserUpdate) apply(usr *User) {
	if u.Name != nil {
		usr.Name = *u.Name
	}
	if u.Email != nil {
		usr.Email = *u.Email
	}
	if u.PasswordHash != nil {
		usr.PasswordHash = *u.PasswordHash
	}
	if u.Company != nil {
		usr.Company = *u.Company
	}
	if u.Roles != nil {
		usr.Roles = append([]string{}, (*u.Roles)...)
	}
}
