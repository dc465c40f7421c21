// Package handler 管理端接口（/admin/v1），分组已统一要求 admin/employee
package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
	"ethio-home/internal/service"
	httpez "ethio-home/internal/transport/http/ez"
)

type AdminHandler struct {
	DB    *gorm.DB
	Users *service.UserService
	Props *service.PropertyService
	Pay   *service.PaymentService
}

func NewAdminHandler(db *gorm.DB, users *service.UserService, props *service.PropertyService, pay *service.PaymentService) *AdminHandler {
	return &AdminHandler{DB: db, Users: users, Props: props, Pay: pay}
}

type pageQ struct {
	Offset int `form:"offset,default=0"`
	Limit  int `form:"limit,default=20"`
}

func (p *pageQ) clamp() {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
}

type page[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

type userRow struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

func notFound(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return httpez.NotFound(msg)
	}
	return err
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin)

	// --- GET /admin/v1/users  用户列表 ---
	type usersQ struct {
		pageQ
		Q           string `form:"q"` // 按 email/name 模糊搜
		Role        string `form:"role"`
		WithDeleted bool   `form:"with_deleted"` // 是否包含已封禁
	}
	httpez.RegisterAction(ez, h.DB, httpez.Action[usersQ, page[userRow]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, _ *gorm.DB, in *usersQ) (page[userRow], error) {
			in.clamp()
			us, total, err := h.Users.List(c.Request.Context(), repo.UserFilter{
				Q: strings.TrimSpace(in.Q), Role: in.Role, WithDeleted: in.WithDeleted,
				Offset: in.Offset, Limit: in.Limit,
			})
			if err != nil {
				return page[userRow]{}, httpez.Internal("list users failed", err)
			}
			out := page[userRow]{Total: total, Items: make([]userRow, 0, len(us))}
			for _, u := range us {
				out.Items = append(out.Items, userRow{
					ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
					IsVerified: u.IsVerified, Active: u.Active, CreatedAt: u.CreatedAt,
				})
			}
			return out, nil
		},
	})

	// --- POST /admin/v1/users/:id/ban  封禁（软删） ---
	httpez.RegisterAction(ez, h.DB, httpez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/ban",
		Binder: httpez.BindNone,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if id == httpez.ActorFrom(c).ID {
				return nil, httpez.BadRequest("You cannot ban yourself")
			}
			if err := h.Users.Ban(c.Request.Context(), id); err != nil {
				return nil, notFound(err, "user not found")
			}
			return gin.H{"id": id, "active": false}, nil
		},
	})

	// --- POST /admin/v1/users/:id/restore ---
	httpez.RegisterAction(ez, h.DB, httpez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/restore",
		Binder: httpez.BindNone,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.Users.Restore(c.Request.Context(), id); err != nil {
				return nil, notFound(err, "user not found")
			}
			return gin.H{"id": id, "active": true}, nil
		},
	})

	// --- GET /admin/v1/properties/pending  待审核房源（先到先审） ---
	httpez.RegisterAction(ez, h.DB, httpez.Action[pageQ, page[domain.Property]]{
		Method: http.MethodGet,
		Path:   "/properties/pending",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, _ *gorm.DB, in *pageQ) (page[domain.Property], error) {
			in.clamp()
			ps, total, err := h.Props.Pending(c.Request.Context(), in.Offset, in.Limit)
			if err != nil {
				return page[domain.Property]{}, httpez.Internal("list pending failed", err)
			}
			return page[domain.Property]{Total: total, Items: ps}, nil
		},
	})

	// --- POST /admin/v1/properties/:id/verify ---
	httpez.RegisterAction(ez, h.DB, httpez.Action[struct{}, *domain.Property]{
		Method: http.MethodPost,
		Path:   "/properties/:id/verify",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*domain.Property, error) {
			p, err := h.Props.Verify(c.Request.Context(), c.Param("id"), httpez.ActorFrom(c).ID)
			if err != nil {
				return nil, notFound(err, "property not found")
			}
			return p, nil
		},
	})

	// --- GET /admin/v1/payments  付款流水 ---
	type paymentsQ struct {
		pageQ
		Kind   string `form:"kind" binding:"omitempty,oneof=sale subscription"`
		Status string `form:"status"`
		User   string `form:"user"`
	}
	httpez.RegisterAction(ez, h.DB, httpez.Action[paymentsQ, page[domain.Payment]]{
		Method: http.MethodGet,
		Path:   "/payments",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, _ *gorm.DB, in *paymentsQ) (page[domain.Payment], error) {
			in.clamp()
			ps, total, err := h.Pay.List(c.Request.Context(), repo.PaymentFilter{
				Kind: in.Kind, Status: in.Status, UserID: in.User,
				Offset: in.Offset, Limit: in.Limit,
			})
			if err != nil {
				return page[domain.Payment]{}, httpez.Internal("list payments failed", err)
			}
			return page[domain.Payment]{Total: total, Items: ps}, nil
		},
	})
}
