package models

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by the store, services and HTTP layers.
var (
	ErrInvalidInput       = goerr.New("invalid input")
	ErrNotFound           = goerr.New("not found")
	ErrForbidden          = goerr.New("forbidden")
	ErrInvalidTransition  = goerr.New("invalid status transition")
	ErrProviderFailure    = goerr.New("validation provider failed")
	ErrAllProvidersFailed = goerr.New("all validation providers failed")
	ErrStorageFailure     = goerr.New("image storage failed")
)
