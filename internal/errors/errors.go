// Package errors 定义 afriartd 各层共享的带错误码错误类型。
package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
)

// Error 携带错误码、面向调用方的信息以及底层原因。
// 未被 Option 覆盖的属性在读取时才查注册表，包级错误变量因此不受 init 顺序影响。
type Error struct {
	code     Code
	message  string
	cause    error
	override Attributes
	set      overrides
	details  map[string]string
}

type overrides uint8

const (
	overrideRetryable overrides = 1 << iota
	overrideAlert
	overrideSeverity
)

func (e *Error) attributes() Attributes {
	attr := AttributesOf(e.code)
	if e.set&overrideRetryable != 0 {
		attr.Retryable = e.override.Retryable
	}
	if e.set&overrideAlert != 0 {
		attr.Alert = e.override.Alert
	}
	if e.set&overrideSeverity != 0 {
		attr.Severity = e.override.Severity
	}
	return attr
}

// Option 调整单个错误实例的属性。
type Option func(*Error)

// WithMetadata 附加一条诊断信息，不会返回给调用方。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.details == nil {
			e.details = map[string]string{}
		}
		e.details[key] = value
	}
}

func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.override.Retryable = retryable
		e.set |= overrideRetryable
	}
}

func WithAlert(alert bool) Option {
	return func(e *Error) {
		e.override.Alert = alert
		e.set |= overrideAlert
	}
}

func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.override.Severity = sev
		e.set |= overrideSeverity
	}
}

// New 创建错误；message 为空时使用错误码登记的默认描述。
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{code: code, message: message}
	if e.message == "" {
		e.message = AttributesOf(code).Message
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 与 New 相同，但保留 cause 以便 errors.Is / errors.As 继续向下匹配。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 只比较错误码，errors.Is(err, gallery.ErrArtworkNotFound) 对任何 NOT_FOUND 错误都成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回诊断信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.details) == 0 {
		return nil
	}
	return maps.Clone(e.details)
}

func (e *Error) Retryable() bool { return e != nil && e.attributes().Retryable }

func (e *Error) ShouldAlert() bool { return e != nil && e.attributes().Alert }

func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	return e.attributes().Severity
}

// From 在错误链中查找 *Error。
func From(err error) (*Error, bool) {
	var target *Error
	if err == nil || !stdErrors.As(err, &target) {
		return nil, false
	}
	return target, true
}

// CodeOf 返回错误链上第一个 *Error 的错误码，普通 error 视为 UNKNOWN。
func CodeOf(err error) Code {
	e, _ := From(err)
	return e.Code()
}

// RetryableError 判断任务处理器是否应该重新投递。
func RetryableError(err error) bool {
	e, _ := From(err)
	return e.Retryable()
}

// ShouldAlert 判断失败是否需要通知运营人员。
func ShouldAlert(err error) bool {
	e, _ := From(err)
	return e.ShouldAlert()
}

func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
