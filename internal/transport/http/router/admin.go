package router

import (
	"github.com/gin-gonic/gin"

	"ethio-home/internal/core/server"
	"ethio-home/internal/domain"
	mdw "ethio-home/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：统一 Protect + admin/employee
func NewAdminEngine(o Options) *gin.Engine {
	r := server.NewRouter(o.Log, server.Options{Name: "admin", Mode: o.Mode, Origins: o.Origins, Ginzap: true})
	r.Use(o.ingress("admin")...)

	health(r)

	admin := r.Group("/admin/v1")
	admin.Use(o.Guard.Protect(), mdw.RestrictTo(domain.StaffRoles...))

	var reg Registry
	if !reg.Register(o.Modules...) {
		o.Log.Warn("some modules mount neither api nor admin routes")
	}
	reg.MountAdmin(admin)
	return r
}
