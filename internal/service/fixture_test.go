package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/core/auth"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/core/payment"
	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
	"ethio-home/internal/testkit"
)

type fakeGateway struct {
	mu          sync.Mutex
	verifyState string
	initErr     error
	inits       []payment.InitRequest
	verifyCalls int
}

func (g *fakeGateway) Initialize(_ context.Context, req payment.InitRequest) (*payment.InitResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.inits = append(g.inits, req)
	res := &payment.InitResponse{Message: "Hosted Link", Status: "success"}
	res.Data.CheckoutURL = "https://checkout.chapa.test/" + req.TxRef
	return res, nil
}

func (g *fakeGateway) Verify(_ context.Context, ref string) (*payment.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	return &payment.VerifyResponse{
		Message: "Payment details",
		Status:  "success",
		Data:    payment.VerifyData{Status: g.verifyState, TxRef: ref},
	}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

type fixture struct {
	db    *gorm.DB
	rec   *mq.Recorder
	gw    *fakeGateway
	users *repo.UserRepo
	auth  *AuthService
	props *PropertyService
	pay   *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.NewDB(t)
	cfg := testkit.Config()
	log := zap.NewNop()
	rec := &mq.Recorder{}
	gw := &fakeGateway{verifyState: payment.StatusSuccess}

	users := repo.NewUserRepo(db)
	props := NewPropertyService(repo.NewPropertyRepo(db), nil, log)
	f := &fixture{db: db, rec: rec, gw: gw, users: users, props: props}
	f.auth = &AuthService{
		Users:     users,
		JWT:       &auth.JWTer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, TTL: time.Hour},
		Events:    rec,
		Cfg:       cfg.Auth,
		PublicURL: cfg.App.PublicURL,
		Log:       log,
	}
	f.pay = &PaymentService{
		DB:          db,
		Users:       users,
		Props:       repo.NewPropertyRepo(db),
		Payments:    repo.NewPaymentRepo(db),
		Properties:  props,
		Gateway:     gw,
		Events:      rec,
		Chapa:       cfg.Chapa,
		Plans:       cfg.Subscription.Plans,
		FrontendURL: cfg.App.FrontendURL,
		Log:         log,
	}
	return f
}

func event[T any](t *testing.T, rec *mq.Recorder, key string) T {
	t.Helper()
	env, ok := rec.Last(key)
	if !ok {
		t.Fatalf("no %s event", key)
	}
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return v
}

func lastSegment(link string) string { return link[strings.LastIndex(link, "/")+1:] }

func countKey(rec *mq.Recorder, key string) int {
	n := 0
	for _, k := range rec.Keys() {
		if k == key {
			n++
		}
	}
	return n
}

func (f *fixture) ledger(t *testing.T, ref string) *domain.Payment {
	t.Helper()
	var p domain.Payment
	if err := f.db.Where("tx_ref = ?", ref).First(&p).Error; err != nil {
		t.Fatalf("load ledger %s: %v", ref, err)
	}
	return &p
}
