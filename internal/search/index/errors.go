package index

import "errors"

var (
	// ErrVectorLengthMismatch indicates two vectors have different dimensions.
	ErrVectorLengthMismatch = errors.New("vector length mismatch")
	// ErrNotBuilt is returned when the index is queried before Build.
	ErrNotBuilt = errors.New("index not built")
	// ErrIndexSealed is returned when a skill is registered after Build.
	ErrIndexSealed = errors.New("index already built")
	// ErrDuplicateTrigger is returned when a trigger is registered twice.
	ErrDuplicateTrigger = errors.New("duplicate trigger")
	// ErrEmptyTrigger is returned when a skill has no trigger.
	ErrEmptyTrigger = errors.New("empty trigger")
	// ErrUnknownTrigger is returned when a trigger is not registered.
	ErrUnknownTrigger = errors.New("unknown trigger")
)
