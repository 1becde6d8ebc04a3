package repository

import (
	"context"
	"errors"

	"log-analyzer/internal/domain"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when the unique username constraint fires.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository defines persistence operations for User entities.
// There are no update or delete operations; accounts are write-once.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
