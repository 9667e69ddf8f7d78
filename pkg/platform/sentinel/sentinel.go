package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks, and caches return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrBusy: lock could not be acquired within its timeout; callers may retry
// - ErrConflict: write clashes with an existing entity
// - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrBusy        = errors.New("busy")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
