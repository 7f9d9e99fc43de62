package entity

import "errors"

// Domain errors for the commentary corpus and the explanation workflow.
var (
	ErrDuplicateVerse     = errors.New("duplicate verse in corpus")
	ErrInvalidVerseRef    = errors.New("invalid verse reference")
	ErrInvalidEntry       = errors.New("invalid commentary entry")
	ErrEmptyQuestion      = errors.New("question is required")
	ErrInvalidFilter      = errors.New("invalid filter expression")
	ErrEmptyCorpus        = errors.New("corpus is empty")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrProviderFailure    = errors.New("generation provider failure")
	ErrProviderNotEnabled = errors.New("generation provider not configured")
)
