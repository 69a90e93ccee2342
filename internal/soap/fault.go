package soap

import (
	"errors"
	"fmt"
)

// Fault codes reported by the panel API.
const (
	CodeAuthentication = "9900"
	CodeValidation     = "9901"
	CodePermission     = "9902"
	CodeOperation      = "9903"
)

var (
	// ErrAuthentication: the auth credentials were rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrValidation: a value in the data argument failed validation.
	ErrValidation = errors.New("data validation failed")
	// ErrPermission: the account lacks the rights to modify the record.
	ErrPermission = errors.New("insufficient permissions")
	// ErrOperation: the operation failed inside the service, e.g. a registrar error.
	ErrOperation = errors.New("operation failed")
)

var faultKinds = map[string]error{
	CodeAuthentication: ErrAuthentication,
	CodeValidation:     ErrValidation,
	CodePermission:     ErrPermission,
	CodeOperation:      ErrOperation,
}

// Fault is a SOAP fault returned instead of a result. Code and Message are
// kept exactly as the service sent them.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Message)
}

// Is reports whether the fault belongs to one of the known categories, so
// callers can use errors.Is(err, soap.ErrPermission).
func (f *Fault) Is(target error) bool {
	kind, ok := faultKinds[f.Code]
	return ok && kind == target
}

// Kind returns the category sentinel for the fault, or nil for codes the
// service does not document.
func (f *Fault) Kind() error {
	return faultKinds[f.Code]
}
