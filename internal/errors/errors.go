package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind identifies one entry of the cache error taxonomy
type ErrorKind string

const (
	KindMalformedDigest ErrorKind = "malformed_digest"
	KindArchiveOpen     ErrorKind = "archive_open"
	KindArchiveEntry    ErrorKind = "archive_entry"
	KindDirectoryRead   ErrorKind = "directory_read"
	KindConfiguration   ErrorKind = "configuration"
	KindManifest        ErrorKind = "manifest"
)

// ErrorSeverity represents how far an error propagates
type ErrorSeverity string

const (
	// ErrorSeverityRecoverable errors are logged and processing continues.
	ErrorSeverityRecoverable ErrorSeverity = "recoverable"
	// ErrorSeverityFatal errors stop the current operation.
	ErrorSeverityFatal ErrorSeverity = "fatal"
)

// Sentinel values for use with errors.Is
var (
	ErrMalformedDigest = &CacheError{Kind: KindMalformedDigest, Message: "malformed digest"}
	ErrArchiveOpen     = &CacheError{Kind: KindArchiveOpen, Message: "archive cannot be opened"}
	ErrArchiveEntry    = &CacheError{Kind: KindArchiveEntry, Message: "archive entry cannot be unpacked"}
	ErrDirectoryRead   = &CacheError{Kind: KindDirectoryRead, Message: "directory cannot be read"}
	ErrConfiguration   = &CacheError{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrManifest        = &CacheError{Kind: KindManifest, Message: "invalid manifest"}
)

// CacheError is the error type returned by the layer cache packages
type CacheError struct {
	Kind      ErrorKind
	Operation string
	Path      string
	Message   string
	Cause     error
}

// Error implements the error interface
func (e *CacheError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Operation != "" {
		msg = fmt.Sprintf("%s: %s", e.Operation, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CacheError of the same kind.
func (e *CacheError) Is(target error) bool {
	t, ok := target.(*CacheError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Severity returns the default propagation of the error kind
func (e *CacheError) Severity() ErrorSeverity {
	switch e.Kind {
	case KindArchiveEntry, KindDirectoryRead:
		return ErrorSeverityRecoverable
	default:
		return ErrorSeverityFatal
	}
}

// NewMalformedDigestError reports a digest without the algorithm:hex structure
func NewMalformedDigestError(digest, message string) *CacheError {
	return &CacheError{
		Kind:      KindMalformedDigest,
		Operation: "parse digest",
		Path:      fmt.Sprintf("%q", digest),
		Message:   message,
	}
}

// NewArchiveOpenError reports an archive that cannot be opened for reading
func NewArchiveOpenError(path string, cause error) *CacheError {
	return &CacheError{
		Kind:      KindArchiveOpen,
		Operation: "open archive",
		Path:      path,
		Message:   "could not open file",
		Cause:     cause,
	}
}

// NewArchiveEntryError reports an archive entry that failed to unpack
func NewArchiveEntryError(path, entry string, cause error) *CacheError {
	return &CacheError{
		Kind:      KindArchiveEntry,
		Operation: "unpack " + path,
		Path:      entry,
		Message:   "could not unpack entry",
		Cause:     cause,
	}
}

// NewDirectoryReadError reports a directory that cannot be listed
func NewDirectoryReadError(path string, cause error) *CacheError {
	return &CacheError{
		Kind:      KindDirectoryRead,
		Operation: "read directory",
		Path:      path,
		Message:   "could not list directory",
		Cause:     cause,
	}
}

// NewConfigurationError reports an invalid configuration value
func NewConfigurationError(message string, cause error) *CacheError {
	return &CacheError{
		Kind:      KindConfiguration,
		Operation: "load config",
		Message:   message,
		Cause:     cause,
	}
}

// NewManifestError reports a manifest that cannot be parsed
func NewManifestError(operation, message string, cause error) *CacheError {
	return &CacheError{
		Kind:      KindManifest,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsRecoverable returns true if err is a CacheError that should be logged
// rather than propagated
func IsRecoverable(err error) bool {
	var ce *CacheError
	if stderrors.As(err, &ce) {
		return ce.Severity() == ErrorSeverityRecoverable
	}
	return false
}
