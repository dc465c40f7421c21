package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"ethio-home/internal/core/config"
	"ethio-home/internal/domain"
)

// Gateway 业务只依赖这两个调用；测试里用 httptest 起假网关
type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (*InitResponse, error)
	Verify(ctx context.Context, txRef string) (*VerifyResponse, error)
}

type Customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type InitRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Email         string          `json:"email"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	TxRef         string          `json:"tx_ref"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	ReturnURL     string          `json:"return_url,omitempty"`
	Customization Customization   `json:"customization"`
}

type InitResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type VerifyData struct {
	Status    string          `json:"status"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
}

type VerifyResponse struct {
	Message string     `json:"message"`
	Status  string     `json:"status"`
	Data    VerifyData `json:"data"`
}

// Paid 网关确认支付成功
func (v *VerifyResponse) Paid() bool { return v.Data.Status == StatusSuccess }

// GatewayError 非 2xx 响应；errors.Is(err, domain.ErrGateway) 成立
type GatewayError struct {
	HTTPStatus int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrGateway, e.Message)
}

func (e *GatewayError) Unwrap() error { return domain.ErrGateway }

type Chapa struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewChapa(c config.Chapa) *Chapa {
	timeout := time.Duration(c.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Chapa{baseURL: c.BaseURL, secretKey: c.SecretKey, client: &http.Client{Timeout: timeout}}
}

func (c *Chapa) Initialize(ctx context.Context, in InitRequest) (*InitResponse, error) {
	var out InitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transaction/initialize", in, &out); err != nil {
		return nil, err
	}
	if out.Data.CheckoutURL == "" {
		return nil, &GatewayError{HTTPStatus: http.StatusOK, Message: "missing checkout_url"}
	}
	return &out, nil
}

func (c *Chapa) Verify(ctx context.Context, txRef string) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transaction/verify/"+url.PathEscape(txRef), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Chapa) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal chapa request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return &GatewayError{Message: err.Error()}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &GatewayError{HTTPStatus: res.StatusCode, Message: err.Error()}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &GatewayError{HTTPStatus: res.StatusCode, Message: gatewayMessage(raw, res.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{HTTPStatus: res.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// Chapa 的 message 可能是字符串，也可能是字段错误对象
func gatewayMessage(raw []byte, fallback string) string {
	var body struct {
		Message json.RawMessage `json:"message"`
	}
	if json.Unmarshal(raw, &body) != nil || len(body.Message) == 0 {
		return fallback
	}
	var s string
	if json.Unmarshal(body.Message, &s) == nil {
		return s
	}
	return string(body.Message)
}
