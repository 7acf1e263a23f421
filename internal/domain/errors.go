package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
)

// Sentinel errors for the connectivity core.
var (
	ErrNotScanning      = fmt.Errorf("not scanning")
	ErrInvalidState     = fmt.Errorf("invalid connection state")
	ErrNoTransport      = fmt.Errorf("no active transport")
	ErrUnknownTransport = fmt.Errorf("unknown transport")
	ErrDeviceNotFound   = fmt.Errorf("device not discovered: %w", ErrNotFound)
	ErrDecodePayload    = fmt.Errorf("malformed reading payload")
	ErrEndpointResponse = fmt.Errorf("invalid response from endpoint")
	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")

	// Gateway / RPC errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: authentication failed")
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Session.Connect")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category reported to gateway clients.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeDisabled          ErrorCode = "DISABLED"
	CodeNotScanning       ErrorCode = "NOT_SCANNING"
	CodeInvalidState      ErrorCode = "INVALID_STATE"
	CodeNoTransport       ErrorCode = "NO_TRANSPORT"
	CodeUnknownTransport  ErrorCode = "UNKNOWN_TRANSPORT"
	CodeDeviceNotFound    ErrorCode = "DEVICE_NOT_FOUND"
	CodeDecodePayload     ErrorCode = "DECODE_PAYLOAD"
	CodeEndpointResponse  ErrorCode = "ENDPOINT_RESPONSE"
	CodeSessionClosed     ErrorCode = "SESSION_CLOSED"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeGatewayAuth       ErrorCode = "GATEWAY_AUTH"
	CodeRPCMethodNotFound ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload ErrorCode = "RPC_INVALID_PAYLOAD"
)

// errorCodeMap maps sentinel errors to their codes. Ordered lookups in
// ErrorCodeOf check the specific sentinels before the categories they wrap.
var errorCodeMap = map[error]ErrorCode{
	ErrNotScanning:       CodeNotScanning,
	ErrInvalidState:      CodeInvalidState,
	ErrNoTransport:       CodeNoTransport,
	ErrUnknownTransport:  CodeUnknownTransport,
	ErrDeviceNotFound:    CodeDeviceNotFound,
	ErrDecodePayload:     CodeDecodePayload,
	ErrEndpointResponse:  CodeEndpointResponse,
	ErrSessionClosed:     CodeSessionClosed,
	ErrConfigLoad:        CodeConfigLoad,
	ErrGatewayAuthFailed: CodeGatewayAuth,
	ErrRPCMethodNotFound: CodeRPCMethodNotFound,
	ErrRPCInvalidPayload: CodeRPCInvalidPayload,
}

var categoryCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrNotFound, CodeNotFound},
	{ErrTimeout, CodeTimeout},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrDisabled, CodeDisabled},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Specific sentinels win over the category sentinels they may wrap.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	for _, c := range categoryCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
