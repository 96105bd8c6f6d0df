package wire

import (
	"errors"
	"fmt"
	"strconv"
)

// Error codes carried in response envelopes. Codes below 100 are
// module-agnostic; the 100 block is Navigator-specific.
const (
	CodeNotReady           = 1
	CodeNotSupported       = 2
	CodeInvalidParams      = 3
	CodeTimeout            = 4
	CodePermissionDenied   = 5
	CodeCancelled          = 6
	CodeInternalError      = 7
	CodeTransportDestroyed = 8
	CodeMethodNotFound     = 9

	CodeStackUnderflow = 100
	CodePageNotFound   = 101
)

var codeNames = map[int]string{
	CodeNotReady:           "NOT_READY",
	CodeNotSupported:       "NOT_SUPPORTED",
	CodeInvalidParams:      "INVALID_PARAMS",
	CodeTimeout:            "TIMEOUT",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeCancelled:          "CANCELLED",
	CodeInternalError:      "INTERNAL_ERROR",
	CodeTransportDestroyed: "TRANSPORT_DESTROYED",
	CodeMethodNotFound:     "METHOD_NOT_FOUND",
	CodeStackUnderflow:     "STACK_UNDERFLOW",
	CodePageNotFound:       "PAGE_NOT_FOUND",
}

// CodeName returns the symbolic name for a wire error code.
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// CodedError is a typed error used for stable wire and API mapping.
type CodedError struct {
	Code    int
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", CodeName(e.Code), e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", CodeName(e.Code), e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError.
func NewError(code int, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// AsCoded extracts a CodedError from an error chain.
func AsCoded(err error) (*CodedError, bool) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// ToErrorBody converts any error to a response error body. Errors without a
// code surface as INTERNAL_ERROR.
func ToErrorBody(err error) *ErrorBody {
	if coded, ok := AsCoded(err); ok {
		return &ErrorBody{Code: coded.Code, Message: coded.Message}
	}
	return &ErrorBody{Code: CodeInternalError, Message: err.Error()}
}

// FromErrorBody converts a response error body back into a CodedError.
func FromErrorBody(body *ErrorBody) error {
	if body == nil {
		return NewError(CodeInternalError, "response carried no error body", nil)
	}
	return &CodedError{Code: body.Code, Message: body.Message}
}
