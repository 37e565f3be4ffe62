package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindValidation     ErrorKind = "validation"
	KindPrecondition   ErrorKind = "precondition"
	KindGateway        ErrorKind = "gateway"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("access denied")
	ErrValidation     = errors.New("request rejected")
	ErrPrecondition   = errors.New("precondition not met")
	ErrGateway        = errors.New("payment gateway error")
	ErrInfrastructure = errors.New("service unreachable")
)

var kindSentinels = map[ErrorKind]error{
	KindAuthentication: ErrAuthentication,
	KindAuthorization:  ErrAuthorization,
	KindValidation:     ErrValidation,
	KindPrecondition:   ErrPrecondition,
	KindGateway:        ErrGateway,
	KindInfrastructure: ErrInfrastructure,
}

const (
	CodeSessionExpired         = "session_expired"
	CodeNotAuthenticated       = "not_authenticated"
	CodeInvalidCredentials     = "invalid_credentials"
	CodeAccessDenied           = "access_denied"
	CodeMalformed              = "malformed"
	CodeCartEmpty              = "cart_empty"
	CodeShippingIncomplete     = "shipping_incomplete"
	CodeNonFinitePrice         = "non_finite_price"
	CodePaymentMethodRequired  = "payment_method_required"
	CodePaymentNotReady        = "payment_not_ready"
	CodePaymentCaptured        = "payment_captured"
	CodeGatewayUnavailable     = "gateway_unavailable"
	CodeGatewayDeclined        = "gateway_declined"
	CodeAuthenticationRequired = "authentication_required"
	CodeNetworkError           = "network_error"
	CodeServerError            = "server_error"
)

const (
	networkErrorMessage = "Network error. Please check your connection and try again."
	genericErrorMessage = "Something went wrong. Please try again."
)

// Error is the single error type crossing component boundaries. Message is safe to
// show to the user as is.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func WrapError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func CodeOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage turns any error into text fit for the checkout screen. It never
// returns an empty string for a non-nil error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := AsError(err)
	if !ok {
		return genericErrorMessage
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindInfrastructure {
		return networkErrorMessage
	}
	return genericErrorMessage
}

// NetworkError is the generic retryable failure for calls that got no usable answer.
func NetworkError(err error) *Error {
	return WrapError(KindInfrastructure, CodeNetworkError, networkErrorMessage, err)
}
