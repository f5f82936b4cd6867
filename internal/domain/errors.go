package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrLockHeld         = errors.New("lock already held")
	ErrInvalidMods      = errors.New("mods must have even length")
	ErrMalformedListing = errors.New("malformed listing")
	ErrInvalidFileName  = errors.New("invalid db file name")
	ErrRealmMismatch    = errors.New("connected realm id mismatch")
)
