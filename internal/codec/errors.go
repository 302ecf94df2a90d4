package codec

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncated          = errors.New("truncated buffer")
	ErrCorruptPalette     = errors.New("corrupt palette")
	ErrCorruptColumn      = errors.New("corrupt column")
	ErrBadEnvelope        = errors.New("bad project envelope")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
)

// DecodeError ошибка разбора сохранённых данных. Reason - одна из ошибок выше,
// вызывающий код проверяет её через errors.Is.
type DecodeError struct {
	Reason error
	Offset int    // Смещение в буфере, где обнаружена проблема (-1 если неприменимо)
	Field  string // Раздел формата: header, authors, extras, column x, envelope...
	Err    error  // Исходная ошибка, если есть
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: %v", e.Field, e.Reason)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap позволяет errors.Is находить и причину, и исходную ошибку
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func decodeErr(reason error, field string, offset int, err error) *DecodeError {
	return &DecodeError{Reason: reason, Field: field, Offset: offset, Err: err}
}
