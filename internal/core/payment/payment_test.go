package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethio-home/internal/core/config"
	"ethio-home/internal/domain"
)

func TestSaleRefRoundTrip(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	ref := SaleRef{PropertyID: "p0123456789abcdef0123456789abcde", UserID: "u0123456789abcdef0123456789abcde", Price: decimal.RequireFromString("1500000.50"), At: at}
	s := ref.String()
	assert.Equal(t, "p0123456789abcdef0123456789abcde-u0123456789abcdef0123456789abcde-1500000.5-1700000000123", s)

	got, err := ParseSaleRef(s)
	require.NoError(t, err)
	assert.Equal(t, ref.PropertyID, got.PropertyID)
	assert.Equal(t, ref.UserID, got.UserID)
	assert.True(t, ref.Price.Equal(got.Price))
	assert.Equal(t, at.UnixMilli(), got.At.UnixMilli())
	assert.False(t, IsSubscriptionRef(s))

	_, err = ParseSaleRef("not-a-ref")
	assert.Error(t, err)
}

func TestSaleRefParsesFromBothEnds(t *testing.T) {
	ref := SaleRef{PropertyID: "p1", UserID: "u1", Price: decimal.NewFromInt(-5), At: time.UnixMilli(77)}
	s := ref.String()
	assert.Equal(t, "p1-u1--5-77", s)

	got, err := ParseSaleRef(s)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PropertyID)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, decimal.NewFromInt(-5).Equal(got.Price))
	assert.EqualValues(t, 77, got.At.UnixMilli())

	_, err = ParseSaleRef("p1-u1-abc-77")
	assert.Error(t, err)
	_, err = ParseSaleRef("p1-u1-5-soon")
	assert.Error(t, err)
}

func TestSubscriptionRef(t *testing.T) {
	s := SubscriptionRef{UserID: "u1", Plan: "basic", At: time.UnixMilli(42)}.String()
	assert.Equal(t, "sub-u1-basic-42", s)
	assert.True(t, IsSubscriptionRef(s))

	got, err := ParseSubscriptionRef(s)
	require.NoError(t, err)
	assert.Equal(t, "basic", got.Plan)
	_, err = ParseSaleRef(s)
	assert.Error(t, err)
}

func TestSubscriptionRefKeepsDashedPlan(t *testing.T) {
	s := SubscriptionRef{UserID: "u1", Plan: "premium-plus", At: time.UnixMilli(42)}.String()
	got, err := ParseSubscriptionRef(s)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "premium-plus", got.Plan)
	assert.EqualValues(t, 42, got.At.UnixMilli())

	_, err = ParseSubscriptionRef("sub-u1--42")
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"tx_ref":"x","status":"success"}`)
	sig := Sign("whsec", body)
	assert.True(t, VerifySignature("whsec", body, sig))
	assert.False(t, VerifySignature("whsec", append(body, ' '), sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("whsec", body, ""))
	assert.False(t, VerifySignature("", body, sig))
}

func TestChapaInitializeAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/transaction/initialize":
			var in InitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "ETB", in.Currency)
			assert.True(t, decimal.NewFromInt(500).Equal(in.Amount))
			_, _ = w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.test/abc"}}`))
		case "/v1/transaction/verify/ref-1":
			_, _ = w.Write([]byte(`{"message":"Payment details","status":"success","data":{"status":"success","tx_ref":"ref-1","amount":500,"currency":"ETB"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewChapa(config.Chapa{BaseURL: srv.URL, SecretKey: "sk", TimeoutSec: 2})
	ir, err := c.Initialize(context.Background(), InitRequest{Amount: decimal.NewFromInt(500), Currency: "ETB", TxRef: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/abc", ir.Data.CheckoutURL)

	v, err := c.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, v.Paid())
	assert.True(t, decimal.NewFromInt(500).Equal(v.Data.Amount))
}

func TestChapaErrorsCarryGatewayMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API Key","status":"failed","data":null}`))
	}))
	defer srv.Close()

	_, err := NewChapa(config.Chapa{BaseURL: srv.URL}).Initialize(context.Background(), InitRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Invalid API Key", ge.Message)
	assert.Equal(t, http.StatusUnauthorized, ge.HTTPStatus)
}

func TestChapaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewChapa(config.Chapa{BaseURL: srv.URL}).Verify(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrGateway)
}
