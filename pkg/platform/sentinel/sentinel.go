package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, loaders and adapters return
// these (optionally wrapped) so callers can branch with errors.Is without
// depending on a concrete backend.
//
//   - ErrNotFound: key absent or expired
//   - ErrUnavailable: backend temporarily unreachable (timeout, refused, circuit open)
//   - ErrInvalidInput: observation missing identifying fields or carrying garbage values
//   - ErrInvalidConfig: configuration rejected at startup
var (
	ErrNotFound      = errors.New("not found")
	ErrUnavailable   = errors.New("unavailable")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
)
