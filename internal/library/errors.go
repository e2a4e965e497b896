package library

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record or blob does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnsupportedFormat indicates a subtitle file with an extension that
	// is neither .srt nor .json.
	ErrUnsupportedFormat = errors.New("unsupported subtitle format, expected .srt or .json")
)

// ValidationError indicates a rejected input (bad name, non-video MIME,
// oversized file). The operation was refused before any write happened.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// DuplicateError indicates an upload matching an already-known file, either
// within the same batch or against stored records.
type DuplicateError struct {
	Name    string
	InBatch bool
}

func (e *DuplicateError) Error() string {
	if e.InBatch {
		return fmt.Sprintf("duplicate file in batch: %s", e.Name)
	}
	return fmt.Sprintf("duplicate of an already stored file: %s", e.Name)
}

// IsValidation reports whether err is a ValidationError or ErrUnsupportedFormat.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrUnsupportedFormat)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}
