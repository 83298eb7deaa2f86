package users

import "errors"

// ErrNotFound is returned by repositories when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

type Repo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
