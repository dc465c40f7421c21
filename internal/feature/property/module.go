// Package property 房源：公开浏览、卖家/中介发布、员工审核
package property

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/service"
	"ethio-home/internal/transport/http/ez"
	mdw "ethio-home/internal/transport/http/middleware"
)

type Module struct {
	DB         *gorm.DB
	Properties *service.PropertyService
	Images     mdw.Uploader
	ImgBase    string // {publicBaseURL}/img/properties
}

func (Module) Priority() int { return 20 }

var writers = append(append([]string{}, domain.StaffRoles...), domain.ListerRoles...)

// CanAct 员工不受限；卖家/中介只能动自己的房源；买家只读
func CanAct(actor ez.Actor, p *domain.Property, op ez.Op) bool {
	switch op {
	case ez.OpList, ez.OpRead:
		return true
	}
	if actor.IsStaff() {
		return true
	}
	return domain.IsLister(actor.Role) && p != nil && p.OwnerID == actor.ID
}

func (m Module) withURLs(p *domain.Property) {
	p.ImagesURL = make([]string, 0, len(p.Images))
	base := strings.TrimRight(m.ImgBase, "/")
	for _, name := range p.Images {
		p.ImagesURL = append(p.ImagesURL, base+"/"+name)
	}
}

func requireNew(p *domain.Property) error {
	var missing []string
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title is required")
	}
	if !p.Price.IsPositive() {
		missing = append(missing, "price must be greater than 0")
	}
	if strings.TrimSpace(p.Location) == "" {
		missing = append(missing, "location is required")
	}
	if p.Type == "" {
		missing = append(missing, "type is required")
	}
	if len(missing) > 0 {
		return ez.BadRequest("Invalid input data. " + strings.Join(missing, ". "))
	}
	return nil
}

func activeOwner(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&domain.User{}).Where("id = ? AND active = ?", id, true).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ez.NotFound("No user found with that ID")
	}
	return nil
}

func (m Module) MountAPI(pub, priv *gin.RouterGroup) {
	upload := m.Images.Handle()

	ez.Crud(ez.CrudConfig[domain.Property]{
		DB:     m.DB,
		Public: pub,
		Group:  priv,
		Path:   "/properties",
		New:    func() *domain.Property { return &domain.Property{} },
		Roles: map[ez.Op][]string{
			ez.OpCreate: writers,
			ez.OpUpdate: writers,
			ez.OpDelete: writers,
		},
		CanAct:    CanAct,
		Protected: []string{"OwnerID", "Sold", "IsVerified", "VerifiedBy", "VerificationDate"},
		Load: func(c *gin.Context, id string) (*domain.Property, error) {
			return m.Properties.Get(c.Request.Context(), id)
		},
		Use: map[ez.Op][]gin.HandlerFunc{ez.OpCreate: {upload}, ez.OpUpdate: {upload}},
		Hooks: ez.CrudHooks[domain.Property]{
			Bind: func(c *gin.Context, _ ez.Actor, p *domain.Property) error {
				if err := c.ShouldBind(p); err != nil {
					return ez.BindError(err)
				}
				p.ID = ""
				if names := ez.Uploaded(c); len(names) > 0 {
					p.Images = names
				}
				return nil
			},
			BeforeCreate: func(_ *gin.Context, tx *gorm.DB, actor ez.Actor, p *domain.Property) error {
				if err := requireNew(p); err != nil {
					return err
				}
				p.IsVerified, p.Sold = false, false
				p.VerifiedBy, p.VerificationDate = nil, nil
				if !actor.IsStaff() || p.OwnerID == "" {
					p.OwnerID = actor.ID
					return nil
				}
				// 员工代发：owner 必须存在
				return activeOwner(tx, p.OwnerID)
			},
			BeforeUpdate: func(_ *gin.Context, tx *gorm.DB, actor ez.Actor, cur, in *domain.Property) error {
				if in.Price != (decimal.Decimal{}) && !in.Price.IsPositive() {
					return ez.BadRequest("Invalid input data. price must be greater than 0")
				}
				if actor.IsStaff() && in.OwnerID != "" && in.OwnerID != cur.OwnerID {
					return activeOwner(tx, in.OwnerID)
				}
				return nil
			},
			ListDefaultFilter: func(_ *gin.Context, _ ez.Actor, q *gorm.DB) *gorm.DB {
				return q.Where("sold = ?", false)
			},
			AfterRead: func(_ *gin.Context, p *domain.Property) { m.withURLs(p) },
			AfterWrite: func(c *gin.Context, p *domain.Property) {
				m.Properties.Invalidate(c.Request.Context(), p.ID)
			},
		},
	})

	e := ez.New(priv.Group("/properties"))

	// 我的房源（含已售）
	ez.RegisterAction(e, m.DB, ez.Action[struct{}, struct{}]{
		Method: http.MethodGet,
		Path:   "/my",
		Binder: ez.BindNone,
		Roles:  writers,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) (struct{}, error) {
			res, err := ez.QueryList[domain.Property](c, db.Model(&domain.Property{}).Where("owner_id = ?", ez.ActorFrom(c).ID))
			if err != nil {
				return struct{}{}, err
			}
			for i := range res.Items {
				m.withURLs(&res.Items[i])
			}
			res.Respond(c)
			return struct{}{}, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *domain.Property]{
		Method: http.MethodPatch,
		Path:   "/:id/verify",
		Binder: ez.BindNone,
		Roles:  domain.StaffRoles,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*domain.Property, error) {
			p, err := m.Properties.Verify(c.Request.Context(), c.Param("id"), ez.ActorFrom(c).ID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, ez.NotFound(ez.MsgNoDocument)
			}
			if err != nil {
				return nil, err
			}
			m.withURLs(p)
			return p, nil
		},
	})
}
