package catalog

import "errors"

var (
	// ErrNotFound is returned when no track exists for the given id.
	ErrNotFound = errors.New("catalog: track not found")
	// ErrDuplicateID is returned when inserting a track whose id is taken.
	ErrDuplicateID = errors.New("catalog: track id already exists")
	// ErrAlreadyInState is returned when a transition targets the state the
	// track is already in, e.g. a double approve.
	ErrAlreadyInState = errors.New("catalog: track already in requested state")
	// ErrInvalidTransition is returned for transitions the moderation state
	// machine does not allow.
	ErrInvalidTransition = errors.New("catalog: invalid state transition")
)
