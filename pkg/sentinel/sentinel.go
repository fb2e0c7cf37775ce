package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: natural-key constraint rejected a write
// - ErrUnavailable: backing store temporarily unreachable
// - ErrAuthRequired: remote backend has no session and could not create one
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrAuthRequired = errors.New("auth required")
)
