package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and remote clients
// return these (optionally wrapped) so services can translate them into domain
// errors or stage failures.
//
//   - ErrNotFound: entity does not exist in the store or cache
//   - ErrConflict: entity already exists or was written concurrently
//   - ErrExpired: cached entry outlived its TTL
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrUnavailable: dependency temporarily unavailable (circuit open, outage)
//
// For client input problems, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
