package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/app"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/core/payment"
	"ethio-home/internal/domain"
	"ethio-home/internal/testkit"
	resp "ethio-home/internal/transport/http/response"
	"ethio-home/internal/transport/http/router"
)

type gateway struct {
	mu          sync.Mutex
	verifyCalls int
}

func (g *gateway) Initialize(_ context.Context, req payment.InitRequest) (*payment.InitResponse, error) {
	res := &payment.InitResponse{Message: "Hosted Link", Status: "success"}
	res.Data.CheckoutURL = "https://checkout.chapa.test/" + req.TxRef
	return res, nil
}

func (g *gateway) Verify(_ context.Context, ref string) (*payment.VerifyResponse, error) {
	g.mu.Lock()
	g.verifyCalls++
	g.mu.Unlock()
	return &payment.VerifyResponse{Status: "success", Data: payment.VerifyData{Status: payment.StatusSuccess, TxRef: ref}}, nil
}

type harness struct {
	t     *testing.T
	db    *gorm.DB
	a     *app.App
	gw    *gateway
	rec   *mq.Recorder
	api   *gin.Engine
	admin *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{t: t, db: testkit.NewDB(t), gw: &gateway{}, rec: &mq.Recorder{}}
	h.a = app.Assemble(testkit.Config(), zap.NewNop(), app.Infra{DB: h.db, Events: h.rec, Gateway: h.gw})
	h.api = router.NewAPIEngine(h.a.APIOptions())
	h.admin = router.NewAdminEngine(h.a.AdminOptions())
	return h
}

func (h *harness) token(u *domain.User) string {
	h.t.Helper()
	tok, err := h.a.JWT.Issue(u.ID, u.Role)
	require.NoError(h.t, err)
	return tok
}

// reply 响应体：data 延迟解析
type reply struct {
	Code       int              `json:"-"`
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Token      string           `json:"token"`
	Results    *int             `json:"results"`
	Pagination *resp.Pagination `json:"pagination"`
	Data       json.RawMessage  `json:"data"`
}

// Into 解析 data.data（或 data.<key>）
func (r reply) Into(t *testing.T, v any, key ...string) {
	t.Helper()
	k := "data"
	if len(key) > 0 {
		k = key[0]
	}
	var wrap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(r.Data, &wrap), "data: %s", r.Data)
	require.NoError(t, json.Unmarshal(wrap[k], v))
}

func (h *harness) do(eng *gin.Engine, method, path, token string, body any, headers ...string) reply {
	h.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	eng.ServeHTTP(w, req)

	r := reply{Code: w.Code}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &r), "body: %s", w.Body.String())
	}
	r.Code = w.Code
	return r
}
