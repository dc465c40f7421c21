package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 网关 / webhook 的交易状态
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusRefunding = "refunding"
	StatusRefunded  = "refunded"
)

const subscriptionPrefix = "sub"

// SaleRef {propertyId}-{userId}-{price}-{unixMillis}
type SaleRef struct {
	PropertyID string
	UserID     string
	Price      decimal.Decimal
	At         time.Time
}

func (r SaleRef) String() string {
	return fmt.Sprintf("%s-%s-%s-%d", r.PropertyID, r.UserID, r.Price.String(), r.At.UnixMilli())
}

// ParseSaleRef 两端定位：前两段是 id，末段是毫秒，中间整体是价格
func ParseSaleRef(ref string) (SaleRef, error) {
	parts := strings.Split(ref, "-")
	if len(parts) < 4 || parts[0] == subscriptionPrefix || parts[0] == "" || parts[1] == "" {
		return SaleRef{}, fmt.Errorf("malformed sale tx_ref %q", ref)
	}
	last := len(parts) - 1
	price, err := decimal.NewFromString(strings.Join(parts[2:last], "-"))
	if err != nil {
		return SaleRef{}, fmt.Errorf("malformed sale tx_ref %q: %w", ref, err)
	}
	ms, err := strconv.ParseInt(parts[last], 10, 64)
	if err != nil {
		return SaleRef{}, fmt.Errorf("malformed sale tx_ref %q: %w", ref, err)
	}
	return SaleRef{PropertyID: parts[0], UserID: parts[1], Price: price, At: time.UnixMilli(ms)}, nil
}

// SubscriptionRef sub-{userId}-{plan}-{unixMillis}
type SubscriptionRef struct {
	UserID string
	Plan   string
	At     time.Time
}

func (r SubscriptionRef) String() string {
	return fmt.Sprintf("%s-%s-%s-%d", subscriptionPrefix, r.UserID, r.Plan, r.At.UnixMilli())
}

// ParseSubscriptionRef 套餐名可能含 "-"，取中间所有段
func ParseSubscriptionRef(ref string) (SubscriptionRef, error) {
	parts := strings.Split(ref, "-")
	if len(parts) < 4 || parts[0] != subscriptionPrefix || parts[1] == "" {
		return SubscriptionRef{}, fmt.Errorf("malformed subscription tx_ref %q", ref)
	}
	last := len(parts) - 1
	plan := strings.Join(parts[2:last], "-")
	if plan == "" {
		return SubscriptionRef{}, fmt.Errorf("malformed subscription tx_ref %q", ref)
	}
	ms, err := strconv.ParseInt(parts[last], 10, 64)
	if err != nil {
		return SubscriptionRef{}, fmt.Errorf("malformed subscription tx_ref %q: %w", ref, err)
	}
	return SubscriptionRef{UserID: parts[1], Plan: plan, At: time.UnixMilli(ms)}, nil
}

// IsSubscriptionRef 按前缀区分订阅与房产交易
func IsSubscriptionRef(ref string) bool {
	return strings.HasPrefix(ref, subscriptionPrefix+"-")
}

// Sign HMAC-SHA256(body) 的 hex
func Sign(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// VerifySignature 常量时间比较
func VerifySignature(secret string, body []byte, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	want := Sign(secret, body)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(sig))))
}

// WebhookEvent Chapa 回调体里用到的字段
type WebhookEvent struct {
	Event     string          `json:"event"`
	Status    string          `json:"status"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email"`
}
