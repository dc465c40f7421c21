// Package subscription 卖家/中介订阅：套餐、发起付款、查询、webhook
package subscription

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/core/config"
	"ethio-home/internal/domain"
	"ethio-home/internal/feature/selling"
	"ethio-home/internal/service"
	"ethio-home/internal/transport/http/ez"
)

type Module struct {
	DB       *gorm.DB
	Payments *service.PaymentService
	Plans    map[string]config.Plan
}

func (Module) Priority() int { return 60 }

type planOut struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Days  int    `json:"days"`
}

type initIn struct {
	Plan string `json:"plan" binding:"required"`
}

func (m Module) plans() []planOut {
	out := make([]planOut, 0, len(m.Plans))
	for name, p := range m.Plans {
		out = append(out, planOut{Name: name, Price: p.Price, Days: p.Days})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m Module) MountAPI(pub, priv *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[domain.SubscriptionPlan]{
		DB:        m.DB,
		Group:     priv,
		Path:      "/subscription",
		New:       func() *domain.SubscriptionPlan { return &domain.SubscriptionPlan{} },
		AllowList: true,
		AllowGet:  true,
		Roles: map[ez.Op][]string{
			ez.OpList: domain.StaffRoles,
			ez.OpRead: domain.StaffRoles,
		},
	})

	e := ez.New(priv.Group("/subscription"))

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *domain.SubscriptionPlan]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Roles:  domain.ListerRoles,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) (*domain.SubscriptionPlan, error) {
			var s domain.SubscriptionPlan
			err := db.Where("seller_id = ?", ez.ActorFrom(c).ID).First(&s).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ez.NotFound("You do not have a subscription yet")
			}
			if err != nil {
				return nil, err
			}
			return &s, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[initIn, *service.Checkout]{
		Method: http.MethodPost,
		Path:   "/initialize",
		Binder: ez.BindJSON,
		Roles:  domain.ListerRoles,
		Handler: func(c *gin.Context, _ *gorm.DB, in *initIn) (*service.Checkout, error) {
			u := ez.CurrentUser(c)
			if u == nil {
				return nil, ez.Unauthorized(ez.MsgNotLoggedIn)
			}
			return m.Payments.InitiateSubscription(c.Request.Context(), u, in.Plan)
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *service.Confirmation]{
		Method: http.MethodGet,
		Path:   "/verify/:txRef",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*service.Confirmation, error) {
			actor := ez.ActorFrom(c)
			return m.Payments.Verify(c.Request.Context(), domain.PaymentKindSubscription, c.Param("txRef"), actor.ID, actor.IsStaff())
		},
	})

	pub.POST("/subscription/webhook", selling.Webhook(m.Payments))
	pub.GET("/subscription/plans", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"plans": m.plans()}})
	})
}
