package catmig

import "fmt"

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// ConfigurationError is a missing/invalid env var or snapshot file. Fatal at startup.
	ConfigurationError
	// CoordinationUnavailable means the coordination service cannot be reached. Fatal to the worker.
	CoordinationUnavailable
	// ReferenceMissing means a required PlatformCountry, Country, or BaseCategory is absent.
	ReferenceMissing
	// SourceDataMalformed flags unparseable embedded provider/gallery JSON.
	SourceDataMalformed
	// TargetWriteConflict is an insert violating a unique constraint.
	TargetWriteConflict
	// TransientStoreError covers connection loss and timeouts against either store.
	TransientStoreError
	// LockAcquisitionFailure means a chunk lease could not be acquired or renewed.
	LockAcquisitionFailure
)

// Error is the engine's custom error carrying a code and optional user data.
type Error[T any] struct {
	Code     ErrorCode
	Err      error
	UserData T
}

func (e Error[T]) Error() string {
	return fmt.Sprintf("Error %d: %v, user data: %v", e.Code, e.Err, e.UserData)
}

func (e Error[T]) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an engine Error.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(interface{ errorCode() ErrorCode }); ok {
			return e.errorCode()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return Unknown
		}
		err = u.Unwrap()
	}
	return Unknown
}

func (e Error[T]) errorCode() ErrorCode {
	return e.Code
}
