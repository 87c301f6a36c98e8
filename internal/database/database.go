package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique index rejected the write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to reach the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a statement failed to execute.
	ErrQuery = errors.New("query error")
)

// Database defines the operations repositories depend on.
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes one or more statements and returns one envelope per statement.
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne returns the first record of the first statement, or ErrNotFound.
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs statements and discards their results.
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds connection settings.
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}
