package errors

import (
	"net/http"
	"sync"
)

// Code 是跨模块共享的错误码，同时决定 HTTP 状态与告警策略。
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeAlreadyCompleted      Code = "ALREADY_COMPLETED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodePaymentFailure        Code = "PAYMENT_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeRetriesExhausted      Code = "RETRIES_EXHAUSTED"
	CodeTimeout               Code = "TIMEOUT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
)

// Severity 用于告警分级与审计日志。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 是错误码的默认描述。Status 为 0 时按 500 处理；
// Expose 表示即便是 5xx 也把具体信息返回给调用方。
type Attributes struct {
	Message   string
	Severity  Severity
	Status    int
	Retryable bool
	Alert     bool
	Expose    bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:          {Message: "unknown error", Severity: SeverityCritical, Alert: true},
		CodeInvalidArgument:  {Message: "invalid argument", Severity: SeverityInfo, Status: http.StatusBadRequest},
		CodeUnauthenticated:  {Message: "Authentication required", Severity: SeverityInfo, Status: http.StatusUnauthorized},
		CodePermissionDenied: {Message: "Unauthorized access", Severity: SeverityWarning, Status: http.StatusForbidden},
		CodeNotFound:         {Message: "resource not found", Severity: SeverityInfo, Status: http.StatusNotFound},
		CodeConflict:         {Message: "resource conflict", Severity: SeverityWarning, Status: http.StatusConflict},
		CodeAlreadyCompleted: {Message: "resource already completed", Severity: SeverityInfo, Status: http.StatusConflict},
		CodeRateLimited:      {Message: "too many requests", Severity: SeverityInfo, Status: http.StatusTooManyRequests, Retryable: true},

		// M-Pesa 的错误描述对付款人有意义，直接透出。
		CodePaymentFailure: {
			Message: "payment provider failure", Severity: SeverityCritical,
			Status: http.StatusBadGateway, Retryable: true, Alert: true, Expose: true,
		},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeQueueFailure:          {Message: "queue failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeRetriesExhausted:      {Message: "retries exhausted", Severity: SeverityWarning, Alert: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Status: http.StatusGatewayTimeout, Retryable: true, Alert: true},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning, Status: http.StatusServiceUnavailable, Retryable: true, Alert: true},
	}
)

// Register 在包初始化阶段登记业务错误码。已通过 RegisterStatus 绑定的状态码会被保留。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if attr.Status == 0 {
		attr.Status = registry[code].Status
	}
	registry[code] = attr
}

// RegisterStatus 只修改错误码对应的 HTTP 状态。
func RegisterStatus(code Code, status int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	attr, ok := registry[code]
	if !ok {
		attr = registry[CodeUnknown]
		attr.Message = string(code)
	}
	attr.Status = status
	registry[code] = attr
}

// AttributesOf 查询错误码属性，未登记的错误码按 UNKNOWN 处理。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}
