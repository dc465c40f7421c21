package response

import "net/http"

// 对外 status 字段：2xx success / 4xx fail / 5xx error
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// StatusOf 按 HTTP 状态码归类
func StatusOf(code int) string {
	switch {
	case code >= 500:
		return StatusError
	case code >= 400:
		return StatusFail
	default:
		return StatusSuccess
	}
}

// DefaultMsg 未给出 message 时的兜底文案
func DefaultMsg(code int) string {
	if code == http.StatusInternalServerError {
		return "Something went very wrong!"
	}
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "error"
}
