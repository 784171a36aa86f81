package cloudsign

import (
	"errors"
	"fmt"
)

// AuthError indicates the credential was rejected by the token endpoint, or
// that a request still failed authentication after a forced token refresh.
// Not retryable; the caller should surface re-authentication guidance.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "cloudsign: authentication failed: " + e.Reason
}

// RemoteError is returned when the signing service rejected a well-formed
// request. Status and body are surfaced verbatim so the caller can decide
// retry-ability.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cloudsign: remote returned %d: %s", e.Status, e.Body)
}

// NetworkError wraps a transport-level failure or timeout. Caller-retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cloudsign: network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a RemoteError with a 404 status.
// DocumentService maps this to the Expired state for documents that already
// had a remote identifier.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == 404
}
