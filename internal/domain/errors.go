package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("invalid request input")
	ErrInitFailed     = errors.New("credential derivation failed")
	ErrRemoteFetch    = errors.New("remote fetch failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate limited")
	ErrReplayDetected = errors.New("payment already used")
	ErrSigningFailed  = errors.New("signing failed")
)
