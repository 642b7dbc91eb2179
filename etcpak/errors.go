package etcpak

import "errors"

// ErrorCode is a codec API error code.
type ErrorCode uint32

const (
	// Success is returned for nil errors.
	Success ErrorCode = 0

	// ErrBadParam reports an invalid argument (nil pointer, wrong buffer size, bad enum value).
	ErrBadParam ErrorCode = 1

	// ErrBadFormat reports an unknown or unsupported block format.
	ErrBadFormat ErrorCode = 2

	// ErrBadMagic reports a container file with an unrecognized magic number.
	ErrBadMagic ErrorCode = 3

	// ErrBadDimensions reports a zero, negative or overflowing image size.
	ErrBadDimensions ErrorCode = 4

	// ErrBadBlockSize reports a block buffer that is not the size the format requires.
	ErrBadBlockSize ErrorCode = 5

	// ErrShortBuffer reports truncated container or block data.
	ErrShortBuffer ErrorCode = 6

	// ErrBadContext reports use of a CodecContext whose tables were never built.
	ErrBadContext ErrorCode = 7

	// ErrNotImplemented reports a container/format combination the writer does not support.
	ErrNotImplemented ErrorCode = 8

	// ErrBadConfig reports a configuration value outside its legal range.
	ErrBadConfig ErrorCode = 9
)

// ErrorString returns the symbolic name for a code.
//
// For unknown codes, it returns "".
func ErrorString(code ErrorCode) string {
	switch code {
	case Success:
		return "ETCPAK_SUCCESS"
	case ErrBadParam:
		return "ETCPAK_ERR_BAD_PARAM"
	case ErrBadFormat:
		return "ETCPAK_ERR_BAD_FORMAT"
	case ErrBadMagic:
		return "ETCPAK_ERR_BAD_MAGIC"
	case ErrBadDimensions:
		return "ETCPAK_ERR_BAD_DIMENSIONS"
	case ErrBadBlockSize:
		return "ETCPAK_ERR_BAD_BLOCK_SIZE"
	case ErrShortBuffer:
		return "ETCPAK_ERR_SHORT_BUFFER"
	case ErrBadContext:
		return "ETCPAK_ERR_BAD_CONTEXT"
	case ErrNotImplemented:
		return "ETCPAK_ERR_NOT_IMPLEMENTED"
	case ErrBadConfig:
		return "ETCPAK_ERR_BAD_CONFIG"
	default:
		return ""
	}
}

// Error is a typed error that carries an ErrorCode.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if s := ErrorString(e.Code); s != "" {
		return "etcpak: " + s
	}
	return "etcpak: error"
}

// Is reports whether target is an *Error with the same code, so errors.Is works
// against sentinel values such as &Error{Code: ErrBadMagic}.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// ErrorCodeOf returns the error code carried by err, or Success for nil.
//
// For non-*Error errors it returns ErrBadParam as a conservative fallback.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrBadParam
}

func newError(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}
