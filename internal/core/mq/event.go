package mq

import (
	"encoding/json"
	"time"
)

// 路由键（topic exchange）
const (
	KeyUserSignup          = "user.signup"
	KeyPaymentPaid         = "payment.paid"
	KeyPaymentFailed       = "payment.failed"
	KeyPropertySold        = "property.sold"
	KeySubscriptionRenewed = "subscription.renewed"
	KeyPasswordReset       = "user.password_reset"
)

// Envelope 统一事件外壳
type Envelope struct {
	Event      string          `json:"event"`
	Version    int             `json:"version"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Version: 1, OccurredAt: time.Now().UTC().Format(time.RFC3339), Data: b}, nil
}

type UserSignup struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Link   string `json:"verification_link"`
}

type PasswordReset struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Link   string `json:"reset_link"`
}

type PaymentEvent struct {
	TxRef      string `json:"tx_ref"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Reason     string `json:"reason,omitempty"`
}

type PropertySold struct {
	PropertyID string `json:"property_id"`
	OwnerID    string `json:"owner_id"`
	BuyerID    string `json:"buyer_id"`
	TxRef      string `json:"tx_ref"`
	Price      string `json:"price"`
}

type SubscriptionRenewed struct {
	SellerID  string `json:"seller_id"`
	Plan      string `json:"plan"`
	TxRef     string `json:"tx_ref"`
	ExpiresAt string `json:"expires_at"`
}
