package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so callers can translate them into exit
// codes or skip decisions.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrLockBusy: exclusive run lock already held by another invocation
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrLockBusy    = errors.New("lock busy")
	ErrUnavailable = errors.New("unavailable")
)
