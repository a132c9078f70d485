package types

import "fmt"

// Kind classifies the error taxonomy from the error handling design. A Kind
// is not itself an error: it is carried by a KindError built with Errf or
// Wrap, which adds a context message and, for Wrap, the underlying cause.
type Kind string

const (
	ErrConfigInvalid        Kind = "ConfigInvalid"
	ErrManifestFetchFailed  Kind = "ManifestFetchFailed"
	ErrManifestParseFailed  Kind = "ManifestParseFailed"
	ErrDuplicateParentPool  Kind = "DuplicateParentPool"
	ErrMissingParentPool    Kind = "MissingParentPool"
	ErrMissingDeployment    Kind = "MissingDeployment"
	ErrNetworkNotActive     Kind = "NetworkNotActive"
	ErrRpcReadFailed        Kind = "RpcReadFailed"
	ErrRpcWriteFailed       Kind = "RpcWriteFailed"
	ErrAllowanceFailed      Kind = "AllowanceFailed"
	ErrReceiptTimeout       Kind = "ReceiptTimeout"
	ErrCancelled            Kind = "Cancelled"
	ErrNotFound             Kind = "NotFound"
)

// KindError carries a Kind alongside the wrapped cause so callers can branch
// on classification with errors.As without parsing message text.
type KindError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *KindError) Unwrap() error { return e.Err }

// Errf builds a KindError with a formatted message and no wrapped cause.
func Errf(kind Kind, format string, args ...any) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a KindError wrapping err with a formatted message.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or something it wraps) is a KindError of kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(*KindError); ok {
			return ke.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
