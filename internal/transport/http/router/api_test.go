package router_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ethio-home/internal/core/mq"
	"ethio-home/internal/core/payment"
	"ethio-home/internal/domain"
	"ethio-home/internal/service"
	"ethio-home/internal/testkit"
)

func TestHealthAndUnknownRoute(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/health", "", nil).Code)

	r := h.do(h.api, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "fail", r.Status)
}

func TestSignupVerifyLoginOverHTTP(t *testing.T) {
	h := newHarness(t)
	signup := map[string]any{
		"name": "Abebe Kebede", "email": "Abebe@Example.com",
		"password": "secret123", "passwordConfirm": "secret123",
	}
	r := h.do(h.api, http.MethodPost, "/api/v1/users/signup", "", signup)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)

	// 同一邮箱再次注册
	r = h.do(h.api, http.MethodPost, "/api/v1/users/signup", "", signup)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Email already in use", r.Message)

	login := map[string]any{"email": "abebe@example.com", "password": "secret123"}
	r = h.do(h.api, http.MethodPost, "/api/v1/users/login", "", login)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Please verify your email before logging in", r.Message)

	env, ok := h.rec.Last(mq.KeyUserSignup)
	require.True(t, ok)
	var ev mq.UserSignup
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	path := strings.TrimPrefix(ev.Link, "http://api.test")
	require.True(t, strings.HasPrefix(path, "/api/v1/users/verifyEmail/"), ev.Link)

	r = h.do(h.api, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	assert.NotEmpty(t, r.Token)

	r = h.do(h.api, http.MethodPost, "/api/v1/users/login", "", map[string]any{"email": "abebe@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "Incorrect email or password", r.Message)

	r = h.do(h.api, http.MethodPost, "/api/v1/users/login", "", login)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var u domain.User
	r.Into(t, &u, "user")
	assert.Equal(t, "abebe@example.com", u.Email)
	assert.Equal(t, domain.RoleBuyer, u.Role)

	me := h.do(h.api, http.MethodGet, "/api/v1/users/me", r.Token, nil)
	require.Equal(t, http.StatusOK, me.Code, me.Message)
	var got domain.User
	me.Into(t, &got)
	assert.Equal(t, u.ID, got.ID)

	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/users/logout", r.Token, nil).Code)
}

func TestProtectRejectsMissingAndStaleTokens(t *testing.T) {
	h := newHarness(t)
	u := testkit.CreateUser(t, h.db, domain.RoleBuyer)

	r := h.do(h.api, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "You are not logged in! Please log in to get access.", r.Message)

	r = h.do(h.api, http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)

	// 10 分钟前签发，1 分钟前改过密码
	old := *h.a.JWT
	old.Clock = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	tok, err := old.Issue(u.ID, u.Role)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(u).Update("password_changed_at", time.Now().Add(-time.Minute)).Error)

	r = h.do(h.api, http.MethodGet, "/api/v1/users/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "User recently changed password! Please log in again.", r.Message)

	// 新 token 正常
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/users/me", h.token(u), nil).Code)
}

func TestPropertyListPagination(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	for i := 0; i < 3; i++ {
		testkit.CreateProperty(t, h.db, seller.ID, int64(1000+i))
	}
	sold := testkit.CreateProperty(t, h.db, seller.ID, 9999)
	require.NoError(t, h.db.Model(sold).Update("sold", true).Error)

	r := h.do(h.api, http.MethodGet, "/api/v1/properties?limit=2", "", nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	require.NotNil(t, r.Results)
	assert.Equal(t, 2, *r.Results)
	assert.EqualValues(t, 3, r.Pagination.Total)
	assert.Equal(t, 2, r.Pagination.Pages)

	r = h.do(h.api, http.MethodGet, "/api/v1/properties?page=2&limit=2&sort=price", "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var items []domain.Property
	r.Into(t, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "1002", items[0].Price.String())

	r = h.do(h.api, http.MethodGet, "/api/v1/properties?page=3&limit=2", "", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "This page does not exist", r.Message)

	// 自己的房源包含已售
	r = h.do(h.api, http.MethodGet, "/api/v1/properties/my", h.token(seller), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	assert.Equal(t, 4, *r.Results)

	r = h.do(h.api, http.MethodGet, "/api/v1/properties/"+sold.ID, "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var one domain.Property
	r.Into(t, &one)
	assert.True(t, one.Sold)

	assert.Equal(t, http.StatusNotFound, h.do(h.api, http.MethodGet, "/api/v1/properties/missing", "", nil).Code)
}

func TestPropertyOwnershipRules(t *testing.T) {
	h := newHarness(t)
	owner := testkit.CreateUser(t, h.db, domain.RoleSeller)
	other := testkit.CreateUser(t, h.db, domain.RoleAgent)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	admin := testkit.CreateUser(t, h.db, domain.RoleAdmin)

	in := map[string]any{
		"title": "Villa in CMC", "price": 2500000, "location": "Addis Ababa",
		"type": "villa", "owner": other.ID, "isVerified": true,
	}
	r := h.do(h.api, http.MethodPost, "/api/v1/properties", h.token(buyer), in)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/properties", h.token(owner), map[string]any{"title": "No price"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Message, "price must be greater than 0")

	r = h.do(h.api, http.MethodPost, "/api/v1/properties", h.token(owner), in)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var p domain.Property
	r.Into(t, &p)
	assert.Equal(t, owner.ID, p.OwnerID)
	assert.False(t, p.IsVerified)
	path := "/api/v1/properties/" + p.ID

	r = h.do(h.api, http.MethodPatch, path, h.token(other), map[string]any{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, r.Code)
	assert.Equal(t, "You do not have permission to perform this action", r.Message)

	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"title": "Renovated villa", "sold": true, "isVerified": true})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.Into(t, &p)
	assert.Equal(t, "Renovated villa", p.Title)
	assert.False(t, p.Sold)
	assert.False(t, p.IsVerified)

	r = h.do(h.api, http.MethodPatch, path, h.token(admin), map[string]any{"title": "Checked by admin"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	r = h.do(h.api, http.MethodPatch, path+"/verify", h.token(owner), nil)
	assert.Equal(t, http.StatusForbidden, r.Code)
	r = h.do(h.api, http.MethodPatch, path+"/verify", h.token(admin), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.Into(t, &p)
	assert.True(t, p.IsVerified)
	require.NotNil(t, p.VerifiedBy)
	assert.Equal(t, admin.ID, *p.VerifiedBy)

	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodDelete, path, h.token(other), nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(h.api, http.MethodDelete, path, h.token(owner), nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(h.api, http.MethodGet, path, "", nil).Code)
}

func TestStaffCreatesPropertyForExistingOwnerOnly(t *testing.T) {
	h := newHarness(t)
	admin := testkit.CreateUser(t, h.db, domain.RoleEmployee)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	in := map[string]any{"title": "Shop", "price": 800000, "location": "Piassa", "type": "commercial", "owner": "nobody"}

	r := h.do(h.api, http.MethodPost, "/api/v1/properties", h.token(admin), in)
	assert.Equal(t, http.StatusNotFound, r.Code)

	in["owner"] = seller.ID
	r = h.do(h.api, http.MethodPost, "/api/v1/properties", h.token(admin), in)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var p domain.Property
	r.Into(t, &p)
	assert.Equal(t, seller.ID, p.OwnerID)
}

func TestInterestUniquenessAndScheduling(t *testing.T) {
	h := newHarness(t)
	owner := testkit.CreateUser(t, h.db, domain.RoleSeller)
	stranger := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	prop := testkit.CreateProperty(t, h.db, owner.ID, 500000)

	in := map[string]any{"property": prop.ID, "message": "Is it still available?", "phone": "0911223344"}
	r := h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(owner), in)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(buyer), in)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var f domain.InterestForm
	r.Into(t, &f)
	assert.Equal(t, buyer.ID, f.BuyerID)
	assert.Equal(t, domain.InterestPending, f.Status)

	r = h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(buyer), in)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "You have already submitted interest for this property", r.Message)

	r = h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(buyer), map[string]any{"property": "missing"})
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = h.do(h.api, http.MethodGet, "/api/v1/interest", h.token(owner), nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, 1, *r.Results)
	r = h.do(h.api, http.MethodGet, "/api/v1/interest", h.token(stranger), nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, 0, *r.Results)

	path := "/api/v1/interest/" + f.ID
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, path, h.token(buyer), nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodGet, path, h.token(stranger), nil).Code)

	// 买家不能改状态
	r = h.do(h.api, http.MethodPatch, path, h.token(buyer), map[string]any{"status": "contacted"})
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"status": "schedule"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Message, "visitDate must be in the future")

	visit := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"status": "schedule", "visitDate": visit})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.Into(t, &f)
	assert.Equal(t, domain.InterestSchedule, f.Status)
	require.NotNil(t, f.VisitDate)

	// 已是 schedule：单独改日期也必须是未来
	past := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"visitDate": past})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Message, "visitDate must be in the future")
	later := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"visitDate": later})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r = h.do(h.api, http.MethodPatch, path, h.token(owner), map[string]any{"message": "See you then"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodDelete, path, h.token(owner), nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(h.api, http.MethodDelete, path, h.token(buyer), nil).Code)
}

func TestSaleCheckoutWebhookAndReplay(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	outsider := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	prop := testkit.CreateProperty(t, h.db, seller.ID, 750000)

	r := h.do(h.api, http.MethodPost, "/api/v1/selling/initialize/"+prop.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/selling/initialize/"+prop.ID, h.token(buyer), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var co service.Checkout
	r.Into(t, &co)
	require.NotEmpty(t, co.TxRef)
	assert.Equal(t, "https://checkout.chapa.test/"+co.TxRef, co.CheckoutURL)

	body := []byte(`{"event":"charge.success","status":"success","tx_ref":"` + co.TxRef + `"}`)
	r = h.do(h.api, http.MethodPost, "/api/v1/selling/webhook", "", body, "x-chapa-signature", "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "Invalid webhook signature", r.Message)

	sig := payment.Sign("whsec", body)
	r = h.do(h.api, http.MethodPost, "/api/v1/selling/webhook", "", body, "x-chapa-signature", sig)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	assert.Equal(t, "Webhook processed", r.Message)

	// 网关重推：幂等
	r = h.do(h.api, http.MethodPost, "/api/v1/selling/webhook", "", body, "chapa-signature", sig)
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	var n int64
	require.NoError(t, h.db.Model(&domain.Selling{}).Where("property_id = ?", prop.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	var stored domain.Property
	require.NoError(t, h.db.First(&stored, "id = ?", prop.ID).Error)
	assert.True(t, stored.Sold)

	r = h.do(h.api, http.MethodGet, "/api/v1/selling/verify/"+co.TxRef, h.token(outsider), nil)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = h.do(h.api, http.MethodGet, "/api/v1/selling/verify/"+co.TxRef, h.token(buyer), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var conf service.Confirmation
	r.Into(t, &conf)
	assert.True(t, conf.Replayed)
	assert.Equal(t, domain.PaymentSuccess, conf.Payment.Status)
	assert.Equal(t, 0, h.gw.verifyCalls)

	// 已售后不能再发起
	r = h.do(h.api, http.MethodPost, "/api/v1/selling/initialize/"+prop.ID, h.token(outsider), nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Property already sold", r.Message)

	r = h.do(h.api, http.MethodGet, "/api/v1/selling/my", h.token(buyer), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var mine []domain.Selling
	r.Into(t, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/selling/"+mine[0].ID, h.token(seller), nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodGet, "/api/v1/selling/"+mine[0].ID, h.token(outsider), nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodGet, "/api/v1/selling", h.token(buyer), nil).Code)
}

func TestManualSaleUsesSoldGuard(t *testing.T) {
	h := newHarness(t)
	staff := testkit.CreateUser(t, h.db, domain.RoleEmployee)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	prop := testkit.CreateProperty(t, h.db, seller.ID, 420000)

	in := map[string]any{"property": prop.ID, "buyer": buyer.ID}
	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodPost, "/api/v1/selling", h.token(buyer), in).Code)

	r := h.do(h.api, http.MethodPost, "/api/v1/selling", h.token(staff), in)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var s domain.Selling
	r.Into(t, &s)
	assert.Equal(t, "420000", s.Price.String())
	assert.True(t, strings.HasPrefix(s.TxRef, "manual-"))

	r = h.do(h.api, http.MethodPost, "/api/v1/selling", h.token(staff), in)
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, "Property already sold", r.Message)
}

func TestReviewRequiresPurchase(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	other := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	prop := testkit.CreateProperty(t, h.db, seller.ID, 300000)

	in := map[string]any{"property": prop.ID, "rating": 5, "review": "Smooth handover"}
	r := h.do(h.api, http.MethodPost, "/api/v1/reviews", h.token(buyer), in)
	assert.Equal(t, http.StatusForbidden, r.Code)

	require.NoError(t, h.db.Create(&domain.Selling{
		PropertyID: prop.ID, BuyerID: buyer.ID, Price: prop.Price, TxRef: "manual-test", PaymentDate: time.Now(),
	}).Error)

	r = h.do(h.api, http.MethodPost, "/api/v1/reviews", h.token(buyer), map[string]any{"property": prop.ID})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/reviews", h.token(buyer), in)
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var rev domain.Review
	r.Into(t, &rev)

	r = h.do(h.api, http.MethodPost, "/api/v1/reviews", h.token(buyer), in)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "You have already reviewed this property", r.Message)

	r = h.do(h.api, http.MethodGet, "/api/v1/reviews", "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, 1, *r.Results)

	path := "/api/v1/reviews/" + rev.ID
	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodPatch, path, h.token(other), map[string]any{"rating": 1}).Code)
	r = h.do(h.api, http.MethodPatch, path, h.token(buyer), map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.Into(t, &rev)
	assert.Equal(t, 4, rev.Rating)
}

func TestSubscriptionPlansAndInitialize(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)

	r := h.do(h.api, http.MethodGet, "/api/v1/subscription/plans", "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var plans []struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	r.Into(t, &plans, "plans")
	require.Len(t, plans, 2)
	assert.Equal(t, "basic", plans[0].Name)

	assert.Equal(t, http.StatusForbidden, h.do(h.api, http.MethodPost, "/api/v1/subscription/initialize", h.token(buyer), map[string]any{"plan": "basic"}).Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/subscription/initialize", h.token(seller), map[string]any{"plan": "gold"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, `Plan "gold" is not offered`, r.Message)

	r = h.do(h.api, http.MethodGet, "/api/v1/subscription/me", h.token(seller), nil)
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = h.do(h.api, http.MethodPost, "/api/v1/subscription/initialize", h.token(seller), map[string]any{"plan": "basic"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var co service.Checkout
	r.Into(t, &co)
	assert.True(t, strings.HasPrefix(co.TxRef, "sub-"+seller.ID+"-basic-"))

	r = h.do(h.api, http.MethodGet, "/api/v1/subscription/verify/"+co.TxRef, h.token(seller), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	assert.Equal(t, 1, h.gw.verifyCalls)

	r = h.do(h.api, http.MethodGet, "/api/v1/subscription/me", h.token(seller), nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var sub domain.SubscriptionPlan
	r.Into(t, &sub)
	assert.True(t, sub.Active)
	assert.Equal(t, []string{co.TxRef}, []string(sub.TxRefs))
}

func TestUpdateMeAndDeleteMe(t *testing.T) {
	h := newHarness(t)
	u := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	tok := h.token(u)

	r := h.do(h.api, http.MethodPatch, "/api/v1/users/updateMe", tok, map[string]any{"name": "Hana Tesfaye"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var got domain.User
	r.Into(t, &got)
	assert.Equal(t, "Hana Tesfaye", got.Name)

	r = h.do(h.api, http.MethodPatch, "/api/v1/users/updateMe", tok, map[string]any{"password": "newpass123"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Message, "/updateMyPassword")

	assert.Equal(t, http.StatusNoContent, h.do(h.api, http.MethodDelete, "/api/v1/users/deleteMe", tok, nil).Code)

	r = h.do(h.api, http.MethodGet, "/api/v1/users/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "The user belonging to this token no longer exists.", r.Message)
}

func TestPropertyUpdateValidatesPriceAndOwner(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	other := testkit.CreateUser(t, h.db, domain.RoleSeller)
	gone := testkit.CreateUser(t, h.db, domain.RoleSeller)
	require.NoError(t, h.db.Model(gone).Update("active", false).Error)
	staff := testkit.CreateUser(t, h.db, domain.RoleEmployee)
	prop := testkit.CreateProperty(t, h.db, seller.ID, 900000)
	path := "/api/v1/properties/" + prop.ID

	for _, price := range []any{-5, 0, "-1.5"} {
		r := h.do(h.api, http.MethodPatch, path, h.token(seller), map[string]any{"price": price})
		assert.Equal(t, http.StatusBadRequest, r.Code, "price %v", price)
		assert.Contains(t, r.Message, "price must be greater than 0")
	}
	var stored domain.Property
	require.NoError(t, h.db.First(&stored, "id = ?", prop.ID).Error)
	assert.True(t, stored.Price.IsPositive())

	r := h.do(h.api, http.MethodPatch, path, h.token(seller), map[string]any{"price": 950000})
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	r = h.do(h.api, http.MethodPatch, path, h.token(staff), map[string]any{"owner": "missing"})
	assert.Equal(t, http.StatusNotFound, r.Code)
	r = h.do(h.api, http.MethodPatch, path, h.token(staff), map[string]any{"owner": gone.ID})
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = h.do(h.api, http.MethodPatch, path, h.token(staff), map[string]any{"owner": other.ID})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var p domain.Property
	r.Into(t, &p)
	assert.Equal(t, other.ID, p.OwnerID)
}

func TestInterestUniqueIndexBacksTheCheck(t *testing.T) {
	h := newHarness(t)
	seller := testkit.CreateUser(t, h.db, domain.RoleSeller)
	buyer := testkit.CreateUser(t, h.db, domain.RoleBuyer)
	prop := testkit.CreateProperty(t, h.db, seller.ID, 500000)

	// 模拟并发请求：应用层检查之后、插入之前，另一条相同意向单先落库
	raced := false
	require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register("test:interest_race", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "interest_forms" {
			return
		}
		raced = true
		now := time.Now()
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO interest_forms (id, created_at, updated_at, buyer_id, property_id, status) VALUES (?, ?, ?, ?, ?, ?)",
			strings.Repeat("f", 32), now, now, buyer.ID, prop.ID, domain.InterestPending)
	}))

	r := h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(buyer), map[string]any{"property": prop.ID})
	require.True(t, raced)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "You have already submitted interest for this property", r.Message)

	// 冲突回滚整个事务，之后正常提交只留一条
	r = h.do(h.api, http.MethodPost, "/api/v1/interest", h.token(buyer), map[string]any{"property": prop.ID})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var n int64
	require.NoError(t, h.db.Model(&domain.InterestForm{}).Where("buyer_id = ? AND property_id = ?", buyer.ID, prop.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
