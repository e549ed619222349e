package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindValidation Kind = iota // 输入校验失败
	KindNotFound               // 资源不存在
	KindForbidden              // 无权限
	KindInvalidState           // 当前生命周期状态不允许该操作
	KindChain                  // 链上调用失败
	KindChainTimeout           // 链上调用超时
)

// 哨兵错误，供 errors.Is 判断类别
var (
	ErrValidation   = &Error{kind: KindValidation, msg: "validation error"}
	ErrNotFound     = &Error{kind: KindNotFound, msg: "not found"}
	ErrForbidden    = &Error{kind: KindForbidden, msg: "forbidden"}
	ErrInvalidState = &Error{kind: KindInvalidState, msg: "invalid state"}
	ErrChain        = &Error{kind: KindChain, msg: "chain error"}
	ErrChainTimeout = &Error{kind: KindChainTimeout, msg: "chain timeout"}
)

// Error 带类别标签的业务错误
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is 同类别即视为匹配，支持 errors.Is(err, errs.ErrForbidden) 式判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// Kind 获取错误类别
func (e *Error) Kind() Kind {
	return e.kind
}

// Validation 创建校验错误
func Validation(format string, args ...interface{}) *Error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound 创建资源不存在错误
func NotFound(format string, args ...interface{}) *Error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Forbidden 创建无权限错误
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{kind: KindForbidden, msg: fmt.Sprintf(format, args...)}
}

// InvalidState 创建状态非法错误
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{kind: KindInvalidState, msg: fmt.Sprintf(format, args...)}
}

// Chain 包装链上调用错误
func Chain(msg string, err error) *Error {
	return &Error{kind: KindChain, msg: msg, err: err}
}

// ChainTimeout 包装链上调用超时
func ChainTimeout(msg string, err error) *Error {
	return &Error{kind: KindChainTimeout, msg: msg, err: err}
}

// KindOf 取出错误的类别；非业务错误返回 false
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}
