package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies where an error applies.
type ErrorKind string

const (
	KindFormat   ErrorKind = "FORMAT_ERROR"
	KindRow      ErrorKind = "ROW_ERROR"
	KindLocation ErrorKind = "LOCATION_ERROR"
	KindSystem   ErrorKind = "SYSTEM_ERROR"
)

// Sentinel errors.
var (
	ErrRunNotFound     = errors.New("run not found")
	ErrNoFiles         = errors.New("no file provided")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// FileError is a file-level error as shown to users.
type FileError struct {
	Type    ErrorKind `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// FormatError reports a header row that matches no known layout. File-fatal.
type FormatError struct {
	Found []string
}

func (e *FormatError) Error() string { return "Formato de archivo no reconocido" }

func (e *FormatError) Kind() ErrorKind { return KindFormat }

// Details lists the headers that were found.
func (e *FormatError) Details() string {
	return fmt.Sprintf("Columnas encontradas: [%s]", strings.Join(e.Found, ", "))
}

// RowError collects the problems of one data row. Row-scoped.
type RowError struct {
	Row      int
	Messages []string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Línea %d: %s", e.Row, strings.Join(e.Messages, ", "))
}

func (e *RowError) Kind() ErrorKind { return KindRow }

// LocationError reports a destination missing from the location tables.
// Location-scoped.
type LocationError struct {
	OriginalName string
}

func (e *LocationError) Error() string {
	return "Ubicación no válida: " + e.OriginalName
}

func (e *LocationError) Kind() ErrorKind { return KindLocation }

// SystemError wraps an unexpected fault while reading a file or creating
// transfers. Fatal to the current file or creation pass.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *SystemError) Unwrap() error { return e.Err }

func (e *SystemError) Kind() ErrorKind { return KindSystem }

// toFileError converts a file-fatal error to its user form.
func toFileError(err error) FileError {
	var fe *FormatError
	if errors.As(err, &fe) {
		return FileError{Type: KindFormat, Message: fe.Error(), Details: fe.Details()}
	}
	fileErr := FileError{Type: KindSystem, Message: err.Error()}
	var se *SystemError
	if errors.As(err, &se) {
		fileErr.Message = se.Err.Error()
		fileErr.Details = se.Error()
	}
	return fileErr
}
