package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/core/config"
	"ethio-home/internal/core/metrics"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/core/payment"
	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
)

// PaymentService 发起支付、主动查询、webhook 三条路径最终都走 Confirm
type PaymentService struct {
	DB          *gorm.DB
	Users       *repo.UserRepo
	Props       *repo.PropertyRepo
	Payments    *repo.PaymentRepo
	Properties  *PropertyService
	Gateway     payment.Gateway
	Events      mq.EventPublisher
	Chapa       config.Chapa
	Plans       map[string]config.Plan
	FrontendURL string
	Log         *zap.Logger
	Now         func() time.Time
}

// Outcome 网关给出的结果
type Outcome struct {
	Status   string
	Reason   string
	Amount   decimal.Decimal
	Currency string
}

type Confirmation struct {
	Payment      *domain.Payment          `json:"payment"`
	Selling      *domain.Selling          `json:"selling,omitempty"`
	Subscription *domain.SubscriptionPlan `json:"subscription,omitempty"`
	Replayed     bool                     `json:"replayed"`
}

type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
	Message     string `json:"message,omitempty"`
}

// 事务内抢 sold 失败
var errSoldRace = errors.New("sold race lost")

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PaymentService) currency() string {
	if s.Chapa.Currency == "" {
		return "ETB"
	}
	return s.Chapa.Currency
}

func (s *PaymentService) plan(name string) (config.Plan, decimal.Decimal, error) {
	p, ok := s.Plans[name]
	if !ok {
		return config.Plan{}, decimal.Zero, fmt.Errorf("%w: plan %q is not offered", domain.ErrValidation, name)
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return config.Plan{}, decimal.Zero, fmt.Errorf("plan %q price: %w", name, err)
	}
	return p, price, nil
}

// ---------- 发起 ----------

func (s *PaymentService) InitiateSale(ctx context.Context, buyer *domain.User, propertyID string) (*Checkout, error) {
	prop, err := s.Props.FindByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop.Sold {
		return nil, fmt.Errorf("%w: property already sold", domain.ErrValidation)
	}
	if !prop.Price.IsPositive() {
		return nil, fmt.Errorf("%w: property has no valid price", domain.ErrValidation)
	}
	ref := payment.SaleRef{PropertyID: prop.ID, UserID: buyer.ID, Price: prop.Price, At: s.now()}.String()
	p := &domain.Payment{
		TxRef:      ref,
		Kind:       domain.PaymentKindSale,
		Status:     domain.PaymentInitiated,
		UserID:     buyer.ID,
		PropertyID: prop.ID,
		Amount:     prop.Price,
		Currency:   s.currency(),
	}
	return s.initiate(ctx, buyer, p, "Property purchase")
}

func (s *PaymentService) InitiateSubscription(ctx context.Context, seller *domain.User, planName string) (*Checkout, error) {
	_, price, err := s.plan(planName)
	if err != nil {
		return nil, err
	}
	ref := payment.SubscriptionRef{UserID: seller.ID, Plan: planName, At: s.now()}.String()
	p := &domain.Payment{
		TxRef:    ref,
		Kind:     domain.PaymentKindSubscription,
		Status:   domain.PaymentInitiated,
		UserID:   seller.ID,
		Plan:     planName,
		Amount:   price,
		Currency: s.currency(),
	}
	return s.initiate(ctx, seller, p, "Seller subscription")
}

func (s *PaymentService) initiate(ctx context.Context, u *domain.User, p *domain.Payment, desc string) (*Checkout, error) {
	if err := s.Payments.Create(ctx, p); err != nil {
		return nil, err
	}
	first, last := splitName(u.Name)
	res, err := s.Gateway.Initialize(ctx, payment.InitRequest{
		Amount:        p.Amount,
		Currency:      p.Currency,
		Email:         u.Email,
		FirstName:     first,
		LastName:      last,
		PhoneNumber:   u.Phone,
		TxRef:         p.TxRef,
		CallbackURL:   s.Chapa.CallbackURL,
		ReturnURL:     s.returnURL(p.TxRef),
		Customization: payment.Customization{Title: "Ethio-Home", Description: desc},
	})
	if err != nil {
		if _, e := s.Payments.SetStatus(ctx, p.TxRef, domain.PaymentFailed, err.Error()); e != nil {
			s.Log.Warn("mark payment failed", zap.String("tx_ref", p.TxRef), zap.Error(e))
		}
		metrics.Payments.WithLabelValues(p.Kind, domain.PaymentFailed).Inc()
		s.Log.Warn("gateway initialize failed", zap.String("tx_ref", p.TxRef), zap.Error(err))
		return nil, err
	}
	p.CheckoutURL = res.Data.CheckoutURL
	if err := s.Payments.Save(ctx, p); err != nil {
		return nil, err
	}
	metrics.Payments.WithLabelValues(p.Kind, domain.PaymentInitiated).Inc()
	s.Log.Info("payment initiated", zap.String("tx_ref", p.TxRef), zap.String("kind", p.Kind), zap.String("user_id", u.ID))
	return &Checkout{CheckoutURL: p.CheckoutURL, TxRef: p.TxRef, Message: res.Message}, nil
}

func (s *PaymentService) returnURL(ref string) string {
	base := s.Chapa.ReturnURL
	if base == "" {
		base = strings.TrimRight(s.FrontendURL, "/") + "/payment/success"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "tx_ref=" + ref
}

func splitName(name string) (string, string) {
	f := strings.Fields(name)
	switch len(f) {
	case 0:
		return "Customer", "Customer"
	case 1:
		return f[0], f[0]
	default:
		return f[0], strings.Join(f[1:], " ")
	}
}

// ---------- 查询 / webhook ----------

// Verify 已成功的直接返回，不再请求网关；非 staff 只能查自己的流水
func (s *PaymentService) Verify(ctx context.Context, kind, ref, actorID string, staff bool) (*Confirmation, error) {
	p, err := s.Payments.FindByTxRef(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	if p.Kind != kind {
		return nil, domain.ErrNotFound
	}
	if !staff && p.UserID != actorID {
		return nil, domain.ErrForbidden
	}
	if p.Status == domain.PaymentSuccess {
		return s.replay(ctx, p)
	}

	vr, err := s.Gateway.Verify(ctx, ref)
	if err != nil {
		s.Log.Warn("gateway verify failed", zap.String("tx_ref", ref), zap.Error(err))
		return nil, err
	}
	if vr.Paid() {
		return s.Confirm(ctx, ref, Outcome{Status: payment.StatusSuccess, Amount: vr.Data.Amount, Currency: vr.Data.Currency})
	}
	st := vr.Data.Status
	if st == "" {
		st = payment.StatusFailed
	}
	if _, err := s.Confirm(ctx, ref, Outcome{Status: st, Reason: vr.Message}); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: payment not completed (status %s)", domain.ErrValidation, st)
}

// HandleWebhook 验签后按 status 分支；重复推送是幂等的
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, sig string) (*Confirmation, error) {
	if !payment.VerifySignature(s.Chapa.WebhookSecret, body, sig) {
		metrics.Webhooks.WithLabelValues("bad_signature").Inc()
		return nil, domain.ErrBadSignature
	}
	var ev payment.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.TxRef == "" {
		metrics.Webhooks.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: malformed webhook payload", domain.ErrValidation)
	}

	switch ev.Status {
	case payment.StatusSuccess, payment.StatusFailed, payment.StatusCancelled,
		payment.StatusPending, payment.StatusRefunding, payment.StatusRefunded:
	default:
		metrics.Webhooks.WithLabelValues("ignored").Inc()
		s.Log.Info("webhook ignored", zap.String("tx_ref", ev.TxRef), zap.String("status", ev.Status), zap.String("event", ev.Event))
		return nil, nil
	}

	res, err := s.Confirm(ctx, ev.TxRef, Outcome{Status: ev.Status, Amount: ev.Amount, Currency: ev.Currency, Reason: ev.Event})
	switch {
	case errors.Is(err, domain.ErrPropertySold):
		// 已通知买家失败，网关侧无需重试
		metrics.Webhooks.WithLabelValues("sold_race").Inc()
		return nil, nil
	case err != nil:
		metrics.Webhooks.WithLabelValues("error").Inc()
		return nil, err
	}
	result := "applied"
	if res != nil && res.Replayed {
		result = "replayed"
	}
	metrics.Webhooks.WithLabelValues(result).Inc()
	return res, nil
}

// ---------- 确认 ----------

// Confirm 唯一的落账入口
func (s *PaymentService) Confirm(ctx context.Context, ref string, out Outcome) (*Confirmation, error) {
	switch out.Status {
	case payment.StatusSuccess:
		if payment.IsSubscriptionRef(ref) {
			return s.confirmSubscription(ctx, ref)
		}
		return s.confirmSale(ctx, ref, out)
	case payment.StatusFailed, payment.StatusCancelled:
		return s.fail(ctx, ref, out.Status, out.Reason)
	case payment.StatusPending:
		p, _, err := s.mark(ctx, ref, domain.PaymentPending, out.Reason)
		if err != nil {
			return nil, err
		}
		return &Confirmation{Payment: p}, nil
	case payment.StatusRefunding, payment.StatusRefunded:
		p, changed, err := s.mark(ctx, ref, domain.PaymentRefunding, out.Reason)
		if err != nil {
			return nil, err
		}
		if !changed && p.Status == domain.PaymentSuccess {
			s.Log.Warn("refund notice for settled payment", zap.String("tx_ref", ref))
		}
		return &Confirmation{Payment: p}, nil
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, out.Status)
	}
}

func (s *PaymentService) confirmSale(ctx context.Context, ref string, out Outcome) (*Confirmation, error) {
	sr, err := payment.ParseSaleRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	now := s.now()
	var res *Confirmation
	var prop *domain.Property

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pays := s.Payments.WithTx(tx)
		p, err := s.ledgerInTx(ctx, pays, ref)
		if err != nil {
			return err
		}
		if p.Status == domain.PaymentSuccess {
			sel, err := pays.SellingByTxRef(ctx, ref)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			res = &Confirmation{Payment: p, Selling: sel, Replayed: true}
			return nil
		}

		prop, err = s.Props.WithTx(tx).FindByID(ctx, sr.PropertyID)
		if err != nil {
			return err
		}
		if !out.Amount.IsZero() && !out.Amount.Equal(p.Amount) {
			s.Log.Warn("paid amount differs from ledger", zap.String("tx_ref", ref),
				zap.String("paid", out.Amount.String()), zap.String("expected", p.Amount.String()))
		}

		sel := &domain.Selling{
			PropertyID:  sr.PropertyID,
			BuyerID:     sr.UserID,
			Price:       p.Amount,
			TxRef:       ref,
			PaymentDate: now,
		}
		inserted, err := pays.InsertSelling(ctx, sel)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// property_id 唯一冲突：别人的交易已经成交
			return errSoldRace
		}
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := pays.SellingByTxRef(ctx, ref)
			if errors.Is(err, domain.ErrNotFound) {
				return errSoldRace
			}
			if err != nil {
				return err
			}
			p.Status, p.Reason = domain.PaymentSuccess, ""
			if err := pays.Save(ctx, p); err != nil {
				return err
			}
			res = &Confirmation{Payment: p, Selling: existing, Replayed: true}
			return nil
		}

		won, err := s.Props.WithTx(tx).MarkSold(ctx, sr.PropertyID)
		if err != nil {
			return err
		}
		if !won {
			return errSoldRace
		}
		p.Status, p.Reason = domain.PaymentSuccess, ""
		if err := pays.Save(ctx, p); err != nil {
			return err
		}
		res = &Confirmation{Payment: p, Selling: sel}
		return nil
	})

	if errors.Is(err, errSoldRace) {
		s.Log.Warn("property sold to another buyer", zap.String("tx_ref", ref), zap.String("property_id", sr.PropertyID))
		if _, e := s.fail(ctx, ref, domain.PaymentCancelled, "property already sold"); e != nil {
			s.Log.Error("cancel payment failed", zap.String("tx_ref", ref), zap.Error(e))
		}
		return nil, domain.ErrPropertySold
	}
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		s.afterSale(ctx, res, prop)
	}
	return res, nil
}

func (s *PaymentService) afterSale(ctx context.Context, res *Confirmation, prop *domain.Property) {
	p, sel := res.Payment, res.Selling
	metrics.Payments.WithLabelValues(p.Kind, domain.PaymentSuccess).Inc()
	metrics.PropertiesSold.Inc()
	s.Properties.Invalidate(ctx, sel.PropertyID)
	s.Log.Info("property sold", zap.String("tx_ref", p.TxRef), zap.String("property_id", sel.PropertyID), zap.String("user_id", sel.BuyerID))

	s.publish(ctx, mq.KeyPaymentPaid, s.paymentEvent(ctx, p))
	s.publish(ctx, mq.KeyPropertySold, mq.PropertySold{
		PropertyID: sel.PropertyID,
		OwnerID:    prop.OwnerID,
		BuyerID:    sel.BuyerID,
		TxRef:      sel.TxRef,
		Price:      sel.Price.String(),
	})
}

func (s *PaymentService) confirmSubscription(ctx context.Context, ref string) (*Confirmation, error) {
	sr, err := payment.ParseSubscriptionRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	plan, price, err := s.plan(sr.Plan)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var res *Confirmation

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pays := s.Payments.WithTx(tx)
		p, err := s.ledgerInTx(ctx, pays, ref)
		if err != nil {
			return err
		}
		row, err := pays.SubscriptionBySeller(ctx, sr.UserID, true)
		if errors.Is(err, domain.ErrNotFound) {
			row = &domain.SubscriptionPlan{SellerID: sr.UserID}
		} else if err != nil {
			return err
		}

		if p.Status == domain.PaymentSuccess || row.HasTxRef(ref) {
			if p.Status != domain.PaymentSuccess {
				p.Status, p.Reason = domain.PaymentSuccess, ""
				if err := pays.Save(ctx, p); err != nil {
					return err
				}
			}
			res = &Confirmation{Payment: p, Replayed: true}
			if row.ID != "" {
				res.Subscription = row
			}
			return nil
		}

		row.Plan = sr.Plan
		row.Price = price
		row.Renew(ref, now, plan.Days)
		if err := pays.SaveSubscription(ctx, row); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: subscription is being updated, retry", domain.ErrConflict)
			}
			return err
		}
		p.Status, p.Reason = domain.PaymentSuccess, ""
		if err := pays.Save(ctx, p); err != nil {
			return err
		}
		res = &Confirmation{Payment: p, Subscription: row}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.Replayed {
		metrics.Payments.WithLabelValues(domain.PaymentKindSubscription, domain.PaymentSuccess).Inc()
		s.Log.Info("subscription renewed", zap.String("tx_ref", ref), zap.String("user_id", sr.UserID), zap.Timep("expires_at", res.Subscription.ExpiresAt))
		s.publish(ctx, mq.KeyPaymentPaid, s.paymentEvent(ctx, res.Payment))
		s.publish(ctx, mq.KeySubscriptionRenewed, mq.SubscriptionRenewed{
			SellerID:  sr.UserID,
			Plan:      sr.Plan,
			TxRef:     ref,
			ExpiresAt: res.Subscription.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	return res, nil
}

// fail failed / cancelled；success 不会被降级
func (s *PaymentService) fail(ctx context.Context, ref, status, reason string) (*Confirmation, error) {
	p, changed, err := s.mark(ctx, ref, status, reason)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.Payments.WithLabelValues(p.Kind, status).Inc()
		ev := s.paymentEvent(ctx, p)
		s.publish(ctx, mq.KeyPaymentFailed, ev)
		s.Log.Info("payment not completed", zap.String("tx_ref", ref), zap.String("status", status), zap.String("reason", reason))
	}
	return &Confirmation{Payment: p}, nil
}

// mark 事务外改状态；流水不存在时按 tx_ref 补建
func (s *PaymentService) mark(ctx context.Context, ref, status, reason string) (*domain.Payment, bool, error) {
	changed, err := s.Payments.SetStatus(ctx, ref, status, reason)
	if err != nil {
		return nil, false, err
	}
	p, err := s.Payments.FindByTxRef(ctx, ref, false)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = s.newLedger(ref)
		if err != nil {
			return nil, false, err
		}
		p.Status, p.Reason = status, reason
		if err := s.Payments.Create(ctx, p); err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, changed, nil
}

func (s *PaymentService) ledgerInTx(ctx context.Context, pays *repo.PaymentRepo, ref string) (*domain.Payment, error) {
	p, err := pays.FindByTxRef(ctx, ref, true)
	if !errors.Is(err, domain.ErrNotFound) {
		return p, err
	}
	p, err = s.newLedger(ref)
	if err != nil {
		return nil, err
	}
	if err := pays.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// newLedger 网关回调了本地没有的流水（例如发起后写库失败）
func (s *PaymentService) newLedger(ref string) (*domain.Payment, error) {
	if payment.IsSubscriptionRef(ref) {
		sr, err := payment.ParseSubscriptionRef(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
		}
		_, price, err := s.plan(sr.Plan)
		if err != nil {
			return nil, err
		}
		return &domain.Payment{
			TxRef: ref, Kind: domain.PaymentKindSubscription, Status: domain.PaymentInitiated,
			UserID: sr.UserID, Plan: sr.Plan, Amount: price, Currency: s.currency(),
		}, nil
	}
	sr, err := payment.ParseSaleRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	return &domain.Payment{
		TxRef: ref, Kind: domain.PaymentKindSale, Status: domain.PaymentInitiated,
		UserID: sr.UserID, PropertyID: sr.PropertyID, Amount: sr.Price, Currency: s.currency(),
	}, nil
}

func (s *PaymentService) replay(ctx context.Context, p *domain.Payment) (*Confirmation, error) {
	res := &Confirmation{Payment: p, Replayed: true}
	switch p.Kind {
	case domain.PaymentKindSale:
		sel, err := s.Payments.SellingByTxRef(ctx, p.TxRef)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		res.Selling = sel
	case domain.PaymentKindSubscription:
		sub, err := s.Payments.SubscriptionBySeller(ctx, p.UserID, false)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		res.Subscription = sub
	}
	return res, nil
}

func (s *PaymentService) paymentEvent(ctx context.Context, p *domain.Payment) mq.PaymentEvent {
	ev := mq.PaymentEvent{
		TxRef:      p.TxRef,
		Kind:       p.Kind,
		Status:     p.Status,
		UserID:     p.UserID,
		PropertyID: p.PropertyID,
		Plan:       p.Plan,
		Amount:     p.Amount.String(),
		Currency:   p.Currency,
		Reason:     p.Reason,
	}
	if u, err := s.Users.FindByID(ctx, p.UserID); err == nil {
		ev.Email, ev.Name = u.Email, u.Name
	}
	return ev
}

func (s *PaymentService) publish(ctx context.Context, key string, data any) {
	if err := s.Events.Publish(ctx, key, data); err != nil {
		s.Log.Warn("publish event failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *PaymentService) List(ctx context.Context, f repo.PaymentFilter) ([]domain.Payment, int64, error) {
	return s.Payments.List(ctx, f)
}
