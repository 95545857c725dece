// internal/falcon/errors.go
package falcon

import "fmt"

// AuthError reports a failed token acquisition. At process startup this is
// fatal; during a running cycle it surfaces as a per-call failure instead.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crowdstrike authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("crowdstrike authentication failed: status %d", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError reports a non-success status from a management API endpoint.
type APIError struct {
	Endpoint string
	Status   int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("falcon api %s returned status %d", e.Endpoint, e.Status)
}
