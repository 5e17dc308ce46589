package apierrors

import (
	"errors"

	"google.golang.org/grpc/codes"
)

// Code 表示统一业务错误码。
type Code string

const (
	CodeConfiguration        Code = "CONFIGURATION_ERROR"
	CodeNotConnected         Code = "NOT_CONNECTED"
	CodeTransportUnavailable Code = "TRANSPORT_UNAVAILABLE"
	CodeRemote               Code = "REMOTE_ERROR"
	CodeDisconnected         Code = "WALLET_DISCONNECTED"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
)

var (
	// ErrConfiguration 构造参数既不是注入式 provider 也不是 URL。
	ErrConfiguration = &Error{Code: CodeConfiguration}
	// ErrNotConnected 钱包未处于 Connected 状态。
	ErrNotConnected = &Error{Code: CodeNotConnected}
	// ErrTransportUnavailable 弹窗被拦截或无法建立。
	ErrTransportUnavailable = &Error{Code: CodeTransportUnavailable}
	// ErrRemote 钱包返回了 error 字段。
	ErrRemote = &Error{Code: CodeRemote}
	// ErrDisconnected 请求在途时连接断开。
	ErrDisconnected = &Error{Code: CodeDisconnected}
	// ErrInvalidArgument 调用参数不合法。
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
)

var httpStatusMap = map[Code]int{
	CodeConfiguration:        500,
	CodeNotConnected:         409,
	CodeTransportUnavailable: 503,
	CodeRemote:               502,
	CodeDisconnected:         503,
	CodeInvalidArgument:      400,
}

var grpcStatusMap = map[Code]codes.Code{
	CodeConfiguration:        codes.Internal,
	CodeNotConnected:         codes.FailedPrecondition,
	CodeTransportUnavailable: codes.Unavailable,
	CodeRemote:               codes.Aborted,
	CodeDisconnected:         codes.Unavailable,
	CodeInvalidArgument:      codes.InvalidArgument,
}

// Error 表示带统一错误码的业务错误。
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New 创建一个新的业务错误。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap 创建业务错误并保留底层原因。
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap 暴露底层原因。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 让无消息的哨兵错误按错误码匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Message == "" && t.cause == nil {
		return e.Code == t.Code
	}
	return e == t
}

// FromError 尝试从通用 error 中解析业务错误。
func FromError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode 判断 err 链中是否存在指定错误码。
func HasCode(err error, code Code) bool {
	apiErr, ok := FromError(err)
	return ok && apiErr.Code == code
}

// HTTPStatus 返回对应的 HTTP 状态码，未知错误默认 500。
func HTTPStatus(code Code) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return 500
}

// GRPCStatus 返回对应的 gRPC code，未知错误默认 Internal。
func GRPCStatus(code Code) codes.Code {
	if status, ok := grpcStatusMap[code]; ok {
		return status
	}
	return codes.Internal
}
