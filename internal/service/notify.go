package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ethio-home/internal/core/mailer"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
)

// NotifyKeys worker 订阅的路由键
var NotifyKeys = []string{
	mq.KeyUserSignup,
	mq.KeyPasswordReset,
	mq.KeyPaymentPaid,
	mq.KeyPaymentFailed,
	mq.KeyPropertySold,
	mq.KeySubscriptionRenewed,
}

// Notifier 事件 → 邮件
type Notifier struct {
	Mail  mailer.Mailer
	Users *repo.UserRepo
	Log   *zap.Logger
}

func decode[T any](env mq.Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return v, nil
}

func (n *Notifier) Handle(ctx context.Context, env mq.Envelope) error {
	switch env.Event {
	case mq.KeyUserSignup:
		ev, err := decode[mq.UserSignup](env)
		if err != nil {
			return err
		}
		return n.Mail.SendEmail(ctx, ev.Name, ev.Email, mailer.SubjectWelcome, mailer.WelcomeBody(ev.Name, ev.Link))

	case mq.KeyPasswordReset:
		ev, err := decode[mq.PasswordReset](env)
		if err != nil {
			return err
		}
		return n.Mail.SendEmail(ctx, ev.Name, ev.Email, mailer.SubjectPasswordReset, mailer.PasswordResetBody(ev.Name, ev.Link))

	case mq.KeyPaymentPaid:
		ev, err := decode[mq.PaymentEvent](env)
		if err != nil {
			return err
		}
		// 订阅成功另有 subscription.renewed 邮件
		if ev.Kind != domain.PaymentKindSale || ev.Email == "" {
			return nil
		}
		return n.Mail.SendEmail(ctx, ev.Name, ev.Email, mailer.SubjectSaleReceipt,
			mailer.SaleReceiptBody(ev.Name, ev.TxRef, ev.Amount, ev.Currency))

	case mq.KeyPaymentFailed:
		ev, err := decode[mq.PaymentEvent](env)
		if err != nil {
			return err
		}
		if ev.Email == "" {
			return nil
		}
		return n.Mail.SendEmail(ctx, ev.Name, ev.Email, mailer.SubjectPaymentFailed,
			mailer.PaymentFailedBody(ev.Name, ev.TxRef, ev.Reason))

	case mq.KeyPropertySold:
		ev, err := decode[mq.PropertySold](env)
		if err != nil {
			return err
		}
		owner, err := n.Users.FindByID(ctx, ev.OwnerID)
		if err != nil {
			n.Log.Warn("sold notice: owner not found", zap.String("user_id", ev.OwnerID), zap.Error(err))
			return nil
		}
		return n.Mail.SendEmail(ctx, owner.Name, owner.Email, mailer.SubjectPropertySold,
			mailer.PropertySoldBody(ev.PropertyID, ev.TxRef, ev.Price))

	case mq.KeySubscriptionRenewed:
		ev, err := decode[mq.SubscriptionRenewed](env)
		if err != nil {
			return err
		}
		seller, err := n.Users.FindByID(ctx, ev.SellerID)
		if err != nil {
			n.Log.Warn("subscription notice: seller not found", zap.String("user_id", ev.SellerID), zap.Error(err))
			return nil
		}
		return n.Mail.SendEmail(ctx, seller.Name, seller.Email, mailer.SubjectSubscription,
			mailer.SubscriptionBody(seller.Name, ev.Plan, ev.ExpiresAt))

	default:
		n.Log.Debug("event without notification", zap.String("key", env.Event))
		return nil
	}
}
