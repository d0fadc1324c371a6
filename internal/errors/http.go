package errors

import "net/http"

// HTTPStatus 返回错误码登记的 HTTP 状态，未指定时为 500。
func HTTPStatus(code Code) int {
	if status := AttributesOf(code).Status; status != 0 {
		return status
	}
	return http.StatusInternalServerError
}

// StatusOf 返回任意 error 对应的 HTTP 状态码，nil 为 200。
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return HTTPStatus(CodeOf(err))
}

// PublicMessage 返回可以直接展示给调用方的错误描述。
// 服务端错误只给出错误码的默认描述，除非该错误码允许透出。
func PublicMessage(err error) string {
	e, ok := From(err)
	if !ok {
		return AttributesOf(CodeUnknown).Message
	}
	attr := AttributesOf(e.Code())
	if HTTPStatus(e.Code()) >= http.StatusInternalServerError && !attr.Expose {
		return attr.Message
	}
	return e.Message()
}
