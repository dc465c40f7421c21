package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule pub 免登录，priv 已过 Protect
type APIModule interface {
	MountAPI(pub, priv *gin.RouterGroup)
}
type AdminModule interface{ MountAdmin(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

// Registry 每个 engine 一份，不做全局注册
type Registry struct {
	api   []APIModule
	admin []AdminModule
}

// Register 根据类型断言分发到 API/Admin 列表；两者都不是返回 false
func (r *Registry) Register(mods ...any) bool {
	ok := true
	for _, mod := range mods {
		matched := false
		if m, is := mod.(APIModule); is {
			r.api = append(r.api, m)
			matched = true
		}
		if m, is := mod.(AdminModule); is {
			r.admin = append(r.admin, m)
			matched = true
		}
		ok = ok && matched
	}
	return ok
}

func (r *Registry) MountAPI(pub, priv *gin.RouterGroup) {
	mods := append([]APIModule(nil), r.api...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAPI(pub, priv)
	}
}

func (r *Registry) MountAdmin(admin *gin.RouterGroup) {
	mods := append([]AdminModule(nil), r.admin...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAdmin(admin)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
