// Package review 评价：仅限买过该房源的买家
package review

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/transport/http/ez"
)

const msgReviewed = "You have already reviewed this property"

type Module struct {
	DB *gorm.DB
}

func (Module) Priority() int { return 40 }

func CanAct(actor ez.Actor, r *domain.Review, op ez.Op) bool {
	switch op {
	case ez.OpList, ez.OpRead, ez.OpCreate:
		return true
	}
	return actor.IsStaff() || r.BuyerID == actor.ID
}

func (m Module) MountAPI(pub, priv *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[domain.Review]{
		DB:     m.DB,
		Public: pub,
		Group:  priv,
		Path:   "/reviews",
		New:    func() *domain.Review { return &domain.Review{} },
		Roles: map[ez.Op][]string{
			ez.OpCreate: {domain.RoleBuyer},
		},
		CanAct:    CanAct,
		Protected: []string{"BuyerID", "PropertyID"},
		Hooks: ez.CrudHooks[domain.Review]{
			BeforeCreate: func(_ *gin.Context, tx *gorm.DB, actor ez.Actor, r *domain.Review) error {
				r.ID = ""
				r.BuyerID = actor.ID
				if r.PropertyID == "" {
					return ez.BadRequest("Invalid input data. property is required")
				}
				if r.Rating < 1 || r.Rating > 5 {
					return ez.BadRequest("Invalid input data. rating must be between 1 and 5")
				}
				var n int64
				if err := tx.Model(&domain.Selling{}).
					Where("buyer_id = ? AND property_id = ?", actor.ID, r.PropertyID).
					Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return ez.Forbidden("You can only review properties you have purchased")
				}
				if err := tx.Model(&domain.Review{}).
					Where("buyer_id = ? AND property_id = ?", actor.ID, r.PropertyID).
					Count(&n).Error; err != nil {
					return err
				}
				if n > 0 {
					return ez.BadRequest(msgReviewed)
				}
				return nil
			},
			BeforeUpdate: func(_ *gin.Context, _ *gorm.DB, _ ez.Actor, _, in *domain.Review) error {
				in.BuyerID, in.PropertyID = "", ""
				return nil
			},
			MapError: func(err error) error {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ez.BadRequest(msgReviewed)
				}
				return err
			},
		},
	})
}
