package domain

import "errors"

var (
	ErrNoRoute       = errors.New("no route available")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
	ErrNotFound      = errors.New("not found")
	ErrLowBalance    = errors.New("balance below floor")
	ErrNotExecutable = errors.New("simulation reports not executable")
)
