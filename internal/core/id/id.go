// Package id generates and parses entity identifiers.
//
// Identifiers are UUIDv7, so they sort by creation time: a lot received
// later has a greater id. The allocator relies on this as its final
// tie-break.
package id

import (
	"bytes"
	"errors"

	"github.com/google/uuid"
)

// ID identifies lots, materials, warehouses and withdrawals.
type ID = uuid.UUID

// Nil is the zero identifier. It never names a stored entity.
var Nil ID

// ErrNil is returned by Parse for the all-zero identifier.
var ErrNil = errors.New("id: nil identifier")

// New returns a fresh time-ordered identifier.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse reads an identifier in canonical form. The zero value is rejected.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	if v == Nil {
		return Nil, ErrNil
	}
	return v, nil
}

// MustParse is Parse for fixtures. It panics on malformed input.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil reports whether v is unset.
func IsNil(v ID) bool {
	return v == Nil
}

// Compare orders ids bytewise, which matches PostgreSQL uuid ordering.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}
