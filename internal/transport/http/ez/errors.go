package ez

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	resp "ethio-home/internal/transport/http/response"
)

// AErr 统一错误对象：Code 即 HTTP 状态码
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: http.StatusNotFound, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Code: http.StatusConflict, Msg: msg} }
func TooMany(msg string) error      { return &AErr{Code: http.StatusTooManyRequests, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: http.StatusInternalServerError, Msg: msg, Err: err}
}
func BadGateway(msg string, err error) error {
	return &AErr{Code: http.StatusBadGateway, Msg: msg, Err: err}
}

const (
	MsgNoDocument   = "No document found with that ID"
	MsgNotLoggedIn  = "You are not logged in! Please log in to get access."
	MsgNoPermission = "You do not have permission to perform this action"
	MsgPageNotExist = "This page does not exist"
)

// 领域错误 → 状态码；"%w: 描述" 形式或 msg 为空时取哨兵之后的描述
var sentinels = []struct {
	err  error
	code int
	msg  string
}{
	{domain.ErrNotFound, http.StatusNotFound, MsgNoDocument},
	{gorm.ErrRecordNotFound, http.StatusNotFound, MsgNoDocument},
	{domain.ErrForbidden, http.StatusForbidden, MsgNoPermission},
	{domain.ErrPropertySold, http.StatusConflict, "Property already sold"},
	{domain.ErrAlreadySubmitted, http.StatusBadRequest, "You have already submitted interest for this property"},
	{domain.ErrUnverifiedEmail, http.StatusBadRequest, "Please verify your email before logging in"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password"},
	{domain.ErrTokenInvalid, http.StatusBadRequest, "Token is invalid or has expired"},
	{domain.ErrEmailTaken, http.StatusBadRequest, "Email already in use"},
	{domain.ErrBadSignature, http.StatusUnauthorized, "Invalid webhook signature"},
	{gorm.ErrDuplicatedKey, http.StatusBadRequest, "Duplicate field value. Please use another value!"},
	{domain.ErrConflict, http.StatusConflict, ""},
	{domain.ErrValidation, http.StatusBadRequest, ""},
	{domain.ErrGateway, http.StatusBadGateway, ""},
}

// FromError 任意 error → *AErr
func FromError(err error) *AErr {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &AErr{Code: http.StatusBadRequest, Msg: validationMessage(ve), Err: err}
	}
	for _, s := range sentinels {
		if !errors.Is(err, s.err) {
			continue
		}
		msg := s.msg
		if msg == "" || strings.HasPrefix(err.Error(), s.err.Error()+": ") {
			msg = detail(err, s.err)
		}
		return &AErr{Code: s.code, Msg: msg, Err: err}
	}
	return &AErr{Code: http.StatusInternalServerError, Msg: resp.DefaultMsg(http.StatusInternalServerError), Err: err}
}

// detail "validation failed: plan gold is not offered" → "Plan gold is not offered"
func detail(err, sentinel error) string {
	s := strings.TrimPrefix(err.Error(), sentinel.Error())
	s = strings.TrimLeft(s, ": ")
	if s == "" {
		s = sentinel.Error()
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func validationMessage(ve validator.ValidationErrors) string {
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "future":
			parts = append(parts, fmt.Sprintf("%s must be in the future", fe.Field()))
		case "ethphone":
			parts = append(parts, fmt.Sprintf("%s must be a valid Ethiopian phone number", fe.Field()))
		case "eqfield":
			parts = append(parts, fmt.Sprintf("%s must match %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return "Invalid input data. " + strings.Join(parts, ". ")
}

// Fail 写错误响应；5xx 挂到 c.Errors 交给访问日志
func Fail(c *gin.Context, err error) {
	ae := FromError(err)
	if ae.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(ae.Code, resp.Error(ae.Code, ae.Msg))
}
