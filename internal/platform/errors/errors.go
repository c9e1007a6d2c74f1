package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindBadRequest    Kind = "bad_request"
	KindUpstream      Kind = "upstream"
	KindForbidden     Kind = "forbidden"
	KindNotConfigured Kind = "not_configured"
	KindConfig        Kind = "config"
	KindBootstrap     Kind = "bootstrap"
	KindUnknown       Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf 返回错误链上第一个带 Kind 的错误的类别。
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// HTTPStatus 把错误类别映射为对外的 HTTP 状态码。
// 媒体白名单拒绝按源站行为映射为 400 而不是 403。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindForbidden:
		return http.StatusBadRequest
	case KindNotConfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage 返回可直接透出给调用方的文案，避免泄漏内部错误细节。
func ClientMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return "请求失败"
}
