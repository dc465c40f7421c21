// Package selling 成交记录与房产交易的支付入口（发起 / 查询 / webhook）
package selling

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
	"ethio-home/internal/service"
	"ethio-home/internal/transport/http/ez"
	resp "ethio-home/internal/transport/http/response"
	"ethio-home/pkg/utils"
)

type Module struct {
	DB         *gorm.DB
	Payments   *service.PaymentService
	Properties *service.PropertyService
	Now        func() time.Time
}

func (Module) Priority() int { return 50 }

func (m Module) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// CanAct 员工、买家本人、原房主可读；写入只有员工
func CanAct(actor ez.Actor, s *domain.Selling, op ez.Op) bool {
	if actor.IsStaff() {
		return true
	}
	if op != ez.OpRead || s == nil {
		return false
	}
	return s.BuyerID == actor.ID || (s.Property != nil && s.Property.OwnerID == actor.ID)
}

// Webhook Chapa 回调：原始 body 验签，处理成功或被忽略都回 200
func Webhook(pay *service.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			ez.Fail(c, ez.BindError(err))
			return
		}
		sig := c.GetHeader("x-chapa-signature")
		if sig == "" {
			sig = c.GetHeader("chapa-signature")
		}
		if _, err := pay.HandleWebhook(c.Request.Context(), body, sig); err != nil {
			ez.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp.Message("Webhook processed"))
	}
}

// manualSale 员工手工登记成交：与 webhook 走同一个 sold CAS
func (m Module) manualSale(_ *gin.Context, tx *gorm.DB, _ ez.Actor, s *domain.Selling) error {
	s.ID = ""
	if s.PropertyID == "" || s.BuyerID == "" {
		return ez.BadRequest("Invalid input data. property and buyer are required")
	}
	props := repo.NewPropertyRepo(tx)
	prop, err := props.FindByID(tx.Statement.Context, s.PropertyID)
	if errors.Is(err, domain.ErrNotFound) {
		return ez.NotFound("No property found with that ID")
	}
	if err != nil {
		return err
	}
	if prop.Sold {
		return domain.ErrPropertySold
	}
	var n int64
	if err := tx.Model(&domain.User{}).Where("id = ? AND active = ?", s.BuyerID, true).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ez.NotFound("No user found with that ID")
	}
	if s.Price.IsZero() {
		s.Price = prop.Price
	}
	if s.TxRef == "" {
		s.TxRef = "manual-" + utils.NewID()
	}
	if s.PaymentDate.IsZero() {
		s.PaymentDate = m.now()
	}
	won, err := props.MarkSold(tx.Statement.Context, s.PropertyID)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrPropertySold
	}
	return nil
}

func (m Module) MountAPI(pub, priv *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[domain.Selling]{
		DB:          m.DB,
		Group:       priv,
		Path:        "/selling",
		New:         func() *domain.Selling { return &domain.Selling{} },
		AllowList:   true,
		AllowGet:    true,
		AllowCreate: true,
		Roles: map[ez.Op][]string{
			ez.OpList:   domain.StaffRoles,
			ez.OpCreate: domain.StaffRoles,
		},
		CanAct:  CanAct,
		Preload: []string{"Property"},
		Hooks: ez.CrudHooks[domain.Selling]{
			BeforeCreate: m.manualSale,
			AfterWrite: func(c *gin.Context, s *domain.Selling) {
				m.Properties.Invalidate(c.Request.Context(), s.PropertyID)
			},
			MapError: func(err error) error {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrPropertySold
				}
				return err
			},
		},
	})

	e := ez.New(priv.Group("/selling"))

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, struct{}]{
		Method: http.MethodGet,
		Path:   "/my",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) (struct{}, error) {
			res, err := ez.QueryList[domain.Selling](c, db.Preload("Property").Where("buyer_id = ?", ez.ActorFrom(c).ID))
			if err != nil {
				return struct{}{}, err
			}
			res.Respond(c)
			return struct{}{}, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *service.Checkout]{
		Method: http.MethodPost,
		Path:   "/initialize/:propertyId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*service.Checkout, error) {
			u := ez.CurrentUser(c)
			if u == nil {
				return nil, ez.Unauthorized(ez.MsgNotLoggedIn)
			}
			return m.Payments.InitiateSale(c.Request.Context(), u, c.Param("propertyId"))
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *service.Confirmation]{
		Method: http.MethodGet,
		Path:   "/verify/:txRef",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*service.Confirmation, error) {
			actor := ez.ActorFrom(c)
			return m.Payments.Verify(c.Request.Context(), domain.PaymentKindSale, c.Param("txRef"), actor.ID, actor.IsStaff())
		},
	})

	pub.POST("/selling/webhook", Webhook(m.Payments))
}
