// Package user 账号相关接口：注册/登录/找回密码/个人资料 + 管理员 CRUD
package user

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/service"
	"ethio-home/internal/transport/http/ez"
	mdw "ethio-home/internal/transport/http/middleware"
	resp "ethio-home/internal/transport/http/response"
	"ethio-home/pkg/utils"
)

type Cookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type Module struct {
	DB      *gorm.DB
	Auth    *service.AuthService
	Cookie  Cookie
	Photo   mdw.Uploader
	ImgBase string // {publicBaseURL}/img/users
}

func (Module) Priority() int { return 10 }

// PhotoURL 头像完整地址
func PhotoURL(base string, u *domain.User) string {
	if u == nil || u.Photo == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + u.Photo
}

type tokenOut struct {
	Token string
	User  *domain.User
}

// sendToken 登录类接口统一写 cookie + {status, token, data:{user}}
func (m Module) sendToken(c *gin.Context, out tokenOut) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Cookie.Name, out.Token, int(m.Cookie.TTL.Seconds()), "/", "", m.Cookie.Secure, true)
	out.User.ImagesURL = PhotoURL(m.ImgBase, out.User)
	c.JSON(http.StatusOK, resp.WithToken(out.Token, out.User))
}

func (m Module) MountAPI(pub, priv *gin.RouterGroup) {
	m.mountAuth(ez.New(pub.Group("/users")))
	m.mountMe(ez.New(priv.Group("/users")))
	m.mountAdmin(priv)
}

func (m Module) mountAuth(e ez.EZ) {
	ez.RegisterAction(e, m.DB, ez.Action[service.SignupInput, *domain.User]{
		Method: http.MethodPost,
		Path:   "/signup",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.SignupInput) (*domain.User, error) {
			return m.Auth.Signup(c.Request.Context(), *in)
		},
		Render: func(c *gin.Context, u *domain.User) {
			r := resp.OK(u)
			r.Message = "Signup successful. Please check your email to verify your account."
			c.JSON(http.StatusCreated, r)
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, tokenOut]{
		Method: http.MethodGet,
		Path:   "/verifyEmail/:token",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (tokenOut, error) {
			tok, u, err := m.Auth.VerifyEmail(c.Request.Context(), c.Param("token"))
			return tokenOut{Token: tok, User: u}, err
		},
		Render: m.sendToken,
	})

	type loginIn struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	ez.RegisterAction(e, m.DB, ez.Action[loginIn, tokenOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *loginIn) (tokenOut, error) {
			tok, u, err := m.Auth.Login(c.Request.Context(), in.Email, in.Password)
			return tokenOut{Token: tok, User: u}, err
		},
		Render: m.sendToken,
	})

	// logout 免登录：有合法 token 时顺带拉黑
	ez.RegisterAction(e, m.DB, ez.Action[struct{}, struct{}]{
		Method: http.MethodGet,
		Path:   "/logout",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (struct{}, error) {
			if tok := mdw.TokenFrom(c, m.Cookie.Name); tok != "" {
				if claims, err := m.Auth.JWT.Parse(tok); err == nil {
					if err := m.Auth.Logout(c.Request.Context(), claims); err != nil {
						return struct{}{}, err
					}
				}
			}
			return struct{}{}, nil
		},
		Render: func(c *gin.Context, _ struct{}) {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(m.Cookie.Name, "loggedout", 10, "/", "", m.Cookie.Secure, true)
			c.JSON(http.StatusOK, resp.Resp{Status: resp.StatusSuccess})
		},
	})

	type forgotIn struct {
		Email string `json:"email" binding:"required,email"`
	}
	ez.RegisterAction(e, m.DB, ez.Action[forgotIn, struct{}]{
		Method: http.MethodPost,
		Path:   "/forgotPassword",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *forgotIn) (struct{}, error) {
			return struct{}{}, m.Auth.ForgotPassword(c.Request.Context(), in.Email)
		},
		Render: func(c *gin.Context, _ struct{}) {
			c.JSON(http.StatusOK, resp.Message("Token sent to email!"))
		},
	})

	type resetIn struct {
		Password        string `json:"password" binding:"required,min=8"`
		PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
	}
	ez.RegisterAction(e, m.DB, ez.Action[resetIn, tokenOut]{
		Method: http.MethodPatch,
		Path:   "/resetPassword/:token",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *resetIn) (tokenOut, error) {
			tok, u, err := m.Auth.ResetPassword(c.Request.Context(), c.Param("token"), in.Password)
			return tokenOut{Token: tok, User: u}, err
		},
		Render: m.sendToken,
	})
}

func (m Module) mountMe(e ez.EZ) {
	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*domain.User, error) {
			u := ez.CurrentUser(c)
			u.ImagesURL = PhotoURL(m.ImgBase, u)
			return u, nil
		},
	})

	type passwordIn struct {
		PasswordCurrent string `json:"passwordCurrent" binding:"required"`
		Password        string `json:"password" binding:"required,min=8"`
		PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
	}
	ez.RegisterAction(e, m.DB, ez.Action[passwordIn, tokenOut]{
		Method: http.MethodPatch,
		Path:   "/updateMyPassword",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *passwordIn) (tokenOut, error) {
			tok, u, err := m.Auth.UpdatePassword(c.Request.Context(), ez.ActorFrom(c).ID, in.PasswordCurrent, in.Password)
			return tokenOut{Token: tok, User: u}, err
		},
		Render: m.sendToken,
	})

	type meIn struct {
		Name            string `json:"name" form:"name" binding:"omitempty,max=64"`
		Email           string `json:"email" form:"email" binding:"omitempty,email"`
		Phone           string `json:"phone" form:"phone" binding:"omitempty,ethphone"`
		Password        string `json:"password" form:"password"`
		PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
	}
	ez.RegisterAction(e, m.DB, ez.Action[meIn, *domain.User]{
		Method: http.MethodPatch,
		Path:   "/updateMe",
		Binder: ez.BindForm,
		Auth:   true,
		Use:    []gin.HandlerFunc{m.Photo.Handle()},
		Handler: func(c *gin.Context, db *gorm.DB, in *meIn) (*domain.User, error) {
			if in.Password != "" || in.PasswordConfirm != "" {
				return nil, ez.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
			}
			u := ez.CurrentUser(c)
			fields := map[string]any{}
			if s := strings.TrimSpace(in.Name); s != "" {
				fields["name"] = s
			}
			if in.Email != "" {
				fields["email"] = strings.ToLower(strings.TrimSpace(in.Email))
			}
			if in.Phone != "" {
				fields["phone"] = in.Phone
			}
			if names := ez.Uploaded(c); len(names) > 0 {
				fields["photo"] = names[0]
			}
			if len(fields) > 0 {
				if err := db.Model(u).Updates(fields).Error; err != nil {
					return nil, err
				}
			}
			var fresh domain.User
			if err := db.First(&fresh, "id = ?", u.ID).Error; err != nil {
				return nil, err
			}
			fresh.ImagesURL = PhotoURL(m.ImgBase, &fresh)
			return &fresh, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/deleteMe",
		Binder: ez.BindNone,
		Auth:   true,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) (struct{}, error) {
			return struct{}{}, db.Model(&domain.User{}).Where("id = ?", ez.ActorFrom(c).ID).Update("active", false).Error
		},
	})
}

// adminUserIn 管理员建号需要明文密码
type adminUserIn struct {
	domain.User
	Password string `json:"password"`
}

func (m Module) mountAdmin(priv *gin.RouterGroup) {
	adminOnly := []string{domain.RoleAdmin}
	ez.Crud(ez.CrudConfig[domain.User]{
		DB:    m.DB,
		Group: priv,
		Path:  "/users",
		New:   func() *domain.User { return &domain.User{} },
		Roles: map[ez.Op][]string{
			ez.OpList: adminOnly, ez.OpRead: adminOnly, ez.OpCreate: adminOnly,
			ez.OpUpdate: adminOnly, ez.OpDelete: adminOnly,
		},
		Scope: func(q *gorm.DB) *gorm.DB { return q.Where("active = ?", true) },
		Hooks: ez.CrudHooks[domain.User]{
			Bind: func(c *gin.Context, _ ez.Actor, u *domain.User) error {
				var in adminUserIn
				if err := c.ShouldBindJSON(&in); err != nil {
					return ez.BindError(err)
				}
				in.ID = ""
				if c.Request.Method != http.MethodPost {
					if in.Password != "" {
						return ez.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
					}
					*u = in.User
					return nil
				}
				if len(in.Password) < 8 {
					return ez.BadRequest("Invalid input data. password must be at least 8 characters")
				}
				if in.Name == "" || in.Email == "" {
					return ez.BadRequest("Invalid input data. name and email are required")
				}
				hash, err := utils.HashPassword(in.Password)
				if err != nil {
					return err
				}
				*u = in.User
				u.Email = strings.ToLower(strings.TrimSpace(u.Email))
				u.PasswordHash = hash
				u.IsVerified = true
				u.Active = true
				return nil
			},
			AfterRead: func(_ *gin.Context, u *domain.User) { u.ImagesURL = PhotoURL(m.ImgBase, u) },
			OnDelete: func(_ *gin.Context, tx *gorm.DB, _ ez.Actor, u *domain.User) error {
				return tx.Model(u).Update("active", false).Error
			},
		},
	})
}
