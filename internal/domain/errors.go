package domain

import "errors"

var (
	// ErrNotFound is returned when an instrument or holding does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange is returned when a date range has from after to.
	ErrInvalidRange = errors.New("invalid date range: from is after to")
	// ErrNoPrice is returned when neither the provider nor any reference price can price an instrument.
	ErrNoPrice = errors.New("no price available")
	// ErrAlreadyExists is returned when creating a holding the owner already has.
	ErrAlreadyExists = errors.New("already exists")
)
