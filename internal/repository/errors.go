// Package repository contains the SQL data access used by the handlers.
// Every operation runs on a dedicated connection taken from the pool and
// handed back when the operation ends.
package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
	ErrEmailExists = errors.New("email already exists")
	// ErrForbidden is returned when the caller does not own the row.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when dependent rows block a delete.
	ErrConflict = errors.New("conflict")
)
