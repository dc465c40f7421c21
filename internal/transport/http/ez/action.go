package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	resp "ethio-home/internal/transport/http/response"
)

// EZ 路由分组的轻封装
type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ {
	RegisterValidators()
	return EZ{g: g}
}

func (e EZ) Group() *gin.RouterGroup { return e.g }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindForm  Binder = "form"  // 按 Content-Type 自动选择（multipart / urlencoded / json）
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.PostForm 取
)

// Action 非 CRUD 接口：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // GET | POST | PUT | PATCH | DELETE
	Path    string   // 例："/login"、"/:id/verify"
	Binder  Binder   // 绑定方式
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	UseTx   bool     // 是否包事务（gorm.Transaction）
	Status  int      // 成功状态码，默认 200
	Use     []gin.HandlerFunc
	Handler func(c *gin.Context, db *gorm.DB, in *I) (O, error)
	// Render 自定义成功响应（登录接口要把 token 放在顶层）
	Render func(c *gin.Context, out O)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, db *gorm.DB, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth || len(a.Roles) > 0 {
			actor := ActorFrom(c)
			if actor.Anonymous() {
				Fail(c, Unauthorized(MsgNotLoggedIn))
				return
			}
			if !actor.HasRole(a.Roles) {
				Fail(c, Forbidden(MsgNoPermission))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		case BindForm:
			bindErr = c.ShouldBind(&in)
		default: // BindNone
		}
		if bindErr != nil {
			Fail(c, BindError(bindErr))
			return
		}

		// 3) 执行（可选事务）
		var out O
		var err error
		if a.UseTx {
			err = db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				o, e := a.Handler(c, tx, &in)
				out = o
				return e
			})
		} else {
			out, err = a.Handler(c, db.WithContext(c.Request.Context()), &in)
		}
		if err != nil {
			Fail(c, err)
			return
		}
		if c.Writer.Written() {
			return
		}
		if a.Render != nil {
			a.Render(c, out)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, resp.OK(out))
	}

	handlers := append(append([]gin.HandlerFunc{}, a.Use...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		e.g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default: // 默认 POST
		e.g.POST(a.Path, handlers...)
	}
}

// BindError 校验错误保持原样交给 FromError，其余（JSON 语法等）按 400 处理
func BindError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return &AErr{Code: http.StatusRequestEntityTooLarge, Msg: "Request body too large", Err: err}
	}
	if ae := FromError(err); ae.Code == http.StatusBadRequest {
		return ae
	}
	return BadRequest(err.Error())
}
