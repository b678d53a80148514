package repository

import "errors"

// ErrNotFound indicates no record matched the lookup or conditional update.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates a unique constraint rejected the write.
var ErrDuplicate = errors.New("repository: duplicate key")
