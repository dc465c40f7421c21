package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethio-home/internal/core/cache"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/domain"
	"ethio-home/internal/testkit"
	"ethio-home/pkg/utils"
)

func signup(t *testing.T, f *fixture, email string) *domain.User {
	t.Helper()
	u, err := f.auth.Signup(context.Background(), SignupInput{
		Name: "Abebe Kebede", Email: email, Password: "secret123", PasswordConfirm: "secret123",
	})
	require.NoError(t, err)
	return u
}

func TestSignupVerifyLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := signup(t, f, " Abebe@Example.com ")
	assert.Equal(t, "abebe@example.com", u.Email)
	assert.Equal(t, domain.RoleBuyer, u.Role)
	assert.False(t, u.IsVerified)

	_, _, err := f.auth.Login(ctx, "abebe@example.com", "secret123")
	assert.ErrorIs(t, err, domain.ErrUnverifiedEmail)

	ev := event[mq.UserSignup](t, f.rec, mq.KeyUserSignup)
	assert.Equal(t, u.ID, ev.UserID)
	assert.Contains(t, ev.Link, "http://api.test/api/v1/users/verifyEmail/")

	tok, verified, err := f.auth.VerifyEmail(ctx, lastSegment(ev.Link))
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.True(t, verified.IsVerified)

	tok, logged, err := f.auth.Login(ctx, "ABEBE@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	claims, err := f.auth.JWT.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UID)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	signup(t, f, "dup@example.com")

	_, err := f.auth.Signup(context.Background(), SignupInput{
		Name: "Other", Email: "DUP@example.com", Password: "secret123", PasswordConfirm: "secret123",
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLoginWrongPasswordAndUnknownUser(t *testing.T) {
	f := newFixture(t)
	u := testkit.CreateUser(t, f.db, domain.RoleBuyer)

	_, _, err := f.auth.Login(context.Background(), u.Email, "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = f.auth.Login(context.Background(), "nobody@example.com", testkit.Password)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	f := newFixture(t)
	u := testkit.CreateUser(t, f.db, domain.RoleSeller)
	require.NoError(t, f.users.SetActive(context.Background(), u.ID, false))

	_, _, err := f.auth.Login(context.Background(), u.Email, testkit.Password)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyEmailRejectsBadAndExpiredTokens(t *testing.T) {
	f := newFixture(t)
	u := signup(t, f, "late@example.com")

	_, _, err := f.auth.VerifyEmail(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	tok, err := f.auth.VerificationToken(u.Email)
	require.NoError(t, err)
	f.auth.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = f.auth.VerifyEmail(context.Background(), tok)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, domain.RoleBuyer)

	err := f.auth.ForgotPassword(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.auth.ForgotPassword(ctx, u.Email))
	ev := event[mq.PasswordReset](t, f.rec, mq.KeyPasswordReset)
	raw := lastSegment(ev.Link)

	stored, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, utils.HashToken(raw), stored.PasswordResetToken)

	tok, reset, err := f.auth.ResetPassword(ctx, raw, "brand-new-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	require.NotNil(t, reset.PasswordChangedAt)

	_, _, err = f.auth.Login(ctx, u.Email, testkit.Password)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = f.auth.Login(ctx, u.Email, "brand-new-pass")
	require.NoError(t, err)

	// 一次性
	_, _, err = f.auth.ResetPassword(ctx, raw, "another-pass")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, domain.RoleBuyer)
	require.NoError(t, f.auth.ForgotPassword(ctx, u.Email))
	raw := lastSegment(event[mq.PasswordReset](t, f.rec, mq.KeyPasswordReset).Link)

	f.auth.Now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	_, _, err := f.auth.ResetPassword(ctx, raw, "brand-new-pass")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, domain.RoleSeller)

	_, _, err := f.auth.UpdatePassword(ctx, u.ID, "wrong", "newpass123")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "current password is wrong")

	tok, updated, err := f.auth.UpdatePassword(ctx, u.ID, testkit.Password, "newpass123")
	require.NoError(t, err)
	claims, err := f.auth.JWT.Parse(tok)
	require.NoError(t, err)
	// 新 token 不会被 changedAt 判为过期
	assert.False(t, updated.ChangedPasswordAfter(claims.IssuedTime()))
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	f.auth.Cache = cache.New(mr.Addr(), "", 0)
	u := testkit.CreateUser(t, f.db, domain.RoleBuyer)

	tok, _, err := f.auth.Login(context.Background(), u.Email, testkit.Password)
	require.NoError(t, err)
	claims, err := f.auth.JWT.Parse(tok)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(context.Background(), claims))
	assert.True(t, f.auth.Cache.IsRevoked(context.Background(), claims.ID))
	assert.Greater(t, mr.TTL("jwt:revoked:"+claims.ID), 50*time.Minute)
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.auth.Logout(context.Background(), nil))
}
