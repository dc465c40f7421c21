// Package interest 买家意向单：买家提交，房源方跟进（联系/预约看房/拒绝）
package interest

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/transport/http/ez"
)

type Module struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (Module) Priority() int { return 30 }

func (m Module) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func ownsProperty(actor ez.Actor, f *domain.InterestForm) bool {
	return f.Property != nil && f.Property.OwnerID == actor.ID
}

// CanAct 读：员工、买家本人、房源方；改状态：房源方或员工；删：买家本人或员工
func CanAct(actor ez.Actor, f *domain.InterestForm, op ez.Op) bool {
	if op == ez.OpList || op == ez.OpCreate {
		return true
	}
	if actor.IsStaff() {
		return true
	}
	switch op {
	case ez.OpRead:
		return f.BuyerID == actor.ID || ownsProperty(actor, f)
	case ez.OpUpdate:
		return ownsProperty(actor, f)
	case ez.OpDelete:
		return f.BuyerID == actor.ID
	}
	return false
}

func (m Module) MountAPI(_, priv *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[domain.InterestForm]{
		DB:    m.DB,
		Group: priv,
		Path:  "/interest",
		New:   func() *domain.InterestForm { return &domain.InterestForm{} },
		Roles: map[ez.Op][]string{
			ez.OpCreate: {domain.RoleBuyer},
		},
		CanAct:    CanAct,
		Protected: []string{"BuyerID", "PropertyID"},
		Preload:   []string{"Property"},
		Hooks: ez.CrudHooks[domain.InterestForm]{
			BeforeCreate: func(_ *gin.Context, tx *gorm.DB, actor ez.Actor, f *domain.InterestForm) error {
				f.ID = ""
				f.BuyerID = actor.ID
				f.Status = domain.InterestPending
				f.VisitDate = nil
				if f.PropertyID == "" {
					return ez.BadRequest("Invalid input data. property is required")
				}
				var n int64
				if err := tx.Model(&domain.Property{}).Where("id = ?", f.PropertyID).Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return ez.NotFound("No property found with that ID")
				}
				if err := tx.Model(&domain.InterestForm{}).
					Where("buyer_id = ? AND property_id = ?", f.BuyerID, f.PropertyID).
					Count(&n).Error; err != nil {
					return err
				}
				if n > 0 {
					return domain.ErrAlreadySubmitted
				}
				return nil
			},
			BeforeUpdate: func(_ *gin.Context, _ *gorm.DB, _ ez.Actor, cur, in *domain.InterestForm) error {
				in.BuyerID, in.PropertyID = "", ""
				status := in.Status
				if status == "" {
					status = cur.Status
				}
				// 结果状态为 schedule 时，新设状态或改日期都要求未来时间
				if status != domain.InterestSchedule || (in.Status == "" && in.VisitDate == nil) {
					return nil
				}
				visit := in.VisitDate
				if visit == nil {
					visit = cur.VisitDate
				}
				if visit == nil || !visit.After(m.now()) {
					return ez.BadRequest("Invalid input data. visitDate must be in the future")
				}
				in.VisitDate = visit
				return nil
			},
			ListDefaultFilter: func(_ *gin.Context, actor ez.Actor, q *gorm.DB) *gorm.DB {
				switch {
				case actor.IsStaff():
					return q
				case domain.IsLister(actor.Role):
					return q.Where("property_id IN (?)",
						m.DB.Model(&domain.Property{}).Select("id").Where("owner_id = ?", actor.ID))
				default:
					return q.Where("buyer_id = ?", actor.ID)
				}
			},
			MapError: func(err error) error {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrAlreadySubmitted
				}
				return err
			},
		},
	})
}
