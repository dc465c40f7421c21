package response

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type Resp struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Token      string      `json:"token,omitempty"`
	Results    *int        `json:"results,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Data       any         `json:"data,omitempty"`
}

// OK 单个资源：{status, data:{data}}
func OK(data any) Resp {
	return Resp{Status: StatusSuccess, Data: map[string]any{"data": data}}
}

// WithToken 登录类接口：token 与 user 一起返回
func WithToken(token string, user any) Resp {
	return Resp{Status: StatusSuccess, Token: token, Data: map[string]any{"user": user}}
}

// List 列表：results + pagination + data.data
func List(items any, results int, p Pagination) Resp {
	n := results
	return Resp{Status: StatusSuccess, Results: &n, Pagination: &p, Data: map[string]any{"data": items}}
}

// Message 只有提示语的成功响应
func Message(msg string) Resp {
	return Resp{Status: StatusSuccess, Message: msg}
}

// Error 失败响应（customMsg 为空时按状态码给默认文案）
func Error(code int, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = DefaultMsg(code)
	}
	return Resp{Status: StatusOf(code), Message: msg}
}
