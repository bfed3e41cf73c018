package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	InvalidConfig        Kind = "invalid_config"
	NotFound             Kind = "not_found"
	UnsupportedFormat    Kind = "unsupported_format"
	ParseError           Kind = "parse_error"
	BackendUnusable      Kind = "backend_unusable"
	AllBackendsExhausted Kind = "all_backends_exhausted"
	UnsupportedOperation Kind = "unsupported_operation"
	WriteError           Kind = "write_error"
	BackupError          Kind = "backup_error"
	Internal             Kind = "internal"
)

type AppError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *AppError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// KindOf returns the kind of the outermost AppError in the chain, or Internal.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Is reports whether any AppError in the chain carries kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

// ExhaustedError is returned when every backend in a failover chain was unusable.
type ExhaustedError struct {
	Attempted int
	Last      error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all %d backends unusable", e.Attempted)
	}
	return fmt.Sprintf("all %d backends unusable, last error: %v", e.Attempted, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func UserMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Kind {
	case InvalidConfig:
		return fmt.Sprintf("Invalid configuration: %v", appErr.Err)
	case NotFound:
		return fmt.Sprintf("Path not found: %s", appErr.Path)
	case UnsupportedFormat:
		return fmt.Sprintf("Unsupported image format: %s", appErr.Path)
	case ParseError:
		return fmt.Sprintf("Could not parse %s: %v", appErr.Path, appErr.Err)
	case BackendUnusable:
		return fmt.Sprintf("AI backend failed: %v", appErr.Err)
	case AllBackendsExhausted:
		return fmt.Sprintf("No AI backend produced metadata: %v", appErr.Err)
	case UnsupportedOperation:
		return fmt.Sprintf("Operation not supported for %s: %v", appErr.Path, appErr.Err)
	case WriteError:
		return fmt.Sprintf("Write failed: %s: %v", appErr.Path, appErr.Err)
	case BackupError:
		return fmt.Sprintf("Backup failed: %s: %v", appErr.Path, appErr.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", appErr.Err)
	}
}
