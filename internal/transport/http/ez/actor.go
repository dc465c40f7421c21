package ez

import (
	"slices"

	"github.com/gin-gonic/gin"

	"ethio-home/internal/domain"
)

// gin.Context 中鉴权中间件写入的 key
const (
	KeyUser    = "user"
	KeyUserID  = "userId"
	KeyRole    = "role"
	KeyClaims  = "claims"
	KeyUploads = "uploads"
)

// Actor 当前请求者；匿名时 ID 为空
type Actor struct {
	ID   string
	Role string
}

func ActorFrom(c *gin.Context) Actor {
	return Actor{ID: c.GetString(KeyUserID), Role: c.GetString(KeyRole)}
}

func (a Actor) Anonymous() bool { return a.ID == "" }
func (a Actor) IsStaff() bool   { return domain.IsStaff(a.Role) }

// HasRole roles 为空表示不限角色
func (a Actor) HasRole(roles []string) bool {
	return len(roles) == 0 || slices.Contains(roles, a.Role)
}

// CurrentUser Protect 之后才有值
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(KeyUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

// Uploaded 上传中间件保存的文件名
func Uploaded(c *gin.Context) []string {
	if v, ok := c.Get(KeyUploads); ok {
		if names, ok := v.([]string); ok {
			return names
		}
	}
	return nil
}
