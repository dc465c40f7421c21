package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"ethio-home/internal/core/auth"
	"ethio-home/internal/domain"
	"ethio-home/internal/transport/http/ez"
)

type UserFinder interface {
	FindActiveByID(ctx context.Context, id string) (*domain.User, error)
}

type Revocations interface {
	IsRevoked(ctx context.Context, jti string) bool
}

// Guard 鉴权链：token → 签名/过期 → 黑名单 → 用户存在 → 改密检查
type Guard struct {
	JWT        *auth.JWTer
	Users      UserFinder
	Revoked    Revocations // 可为 nil
	CookieName string
}

// TokenFrom Authorization: Bearer 优先，其次 cookie
func TokenFrom(c *gin.Context, cookieName string) string {
	if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "loggedout" {
			return v
		}
	}
	return ""
}

func (g Guard) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := TokenFrom(c, g.CookieName)
		if tok == "" {
			ez.Fail(c, ez.Unauthorized(ez.MsgNotLoggedIn))
			return
		}
		claims, err := g.JWT.Parse(tok)
		if err != nil {
			ez.Fail(c, ez.Unauthorized(tokenMessage(err)))
			return
		}
		ctx := c.Request.Context()
		if g.Revoked != nil && g.Revoked.IsRevoked(ctx, claims.ID) {
			ez.Fail(c, ez.Unauthorized("This token has been logged out. Please log in again."))
			return
		}
		u, err := g.Users.FindActiveByID(ctx, claims.UID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				ez.Fail(c, ez.Unauthorized("The user belonging to this token no longer exists."))
				return
			}
			ez.Fail(c, err)
			return
		}
		if u.ChangedPasswordAfter(claims.IssuedTime()) {
			ez.Fail(c, ez.Unauthorized("User recently changed password! Please log in again."))
			return
		}
		c.Set(ez.KeyUser, u)
		c.Set(ez.KeyUserID, u.ID)
		c.Set(ez.KeyRole, u.Role)
		c.Set(ez.KeyClaims, claims)
		c.Next()
	}
}

func tokenMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "expired") {
		return "Your token has expired! Please log in again."
	}
	return "Invalid token. Please log in again! (" + msg + ")"
}

// RestrictTo 角色白名单，须在 Protect 之后
func RestrictTo(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ez.ActorFrom(c)
		if actor.Anonymous() {
			ez.Fail(c, ez.Unauthorized(ez.MsgNotLoggedIn))
			return
		}
		if !actor.HasRole(roles) {
			ez.Fail(c, ez.Forbidden(ez.MsgNoPermission))
			return
		}
		c.Next()
	}
}
