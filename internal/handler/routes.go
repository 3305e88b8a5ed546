package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/synapsedt/synapsedt-api/internal/middleware"
	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/internal/repository"
	"github.com/synapsedt/synapsedt-api/internal/service"
)

// Handlers bundles every HTTP handler the API mounts.
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Cycle     *CycleHandler
	Version   *VersionHandler
	Item      *ItemHandler
	Dashboard *DashboardHandler
	Export    *ExportHandler
	Metrics   *MetricsHandler
}

// Register mounts all API routes on the router.
func Register(r *gin.Engine, h Handlers, authService *service.AuthService, userRepo *repository.UserRepository) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	authed := v1.Group("")
	authed.Use(middleware.JWT(authService))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)
	authed.GET("/auth/me", h.Auth.Me)

	users := authed.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), h.User.List)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), h.User.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.User.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), h.User.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.User.Deactivate)

	manageCycles := middleware.RequireRoles(models.RoleAdmin, models.RoleTestExecutive)

	cycles := authed.Group("/cycles")
	cycles.POST("", manageCycles, h.Cycle.CreateCycle)
	cycles.GET("", h.Cycle.ListCycles)
	cycles.GET("/:id", h.Cycle.GetCycle)
	cycles.POST("/:id/close", manageCycles, h.Cycle.CloseCycle)
	cycles.POST("/:id/reports", manageCycles, h.Cycle.CreateReport)
	cycles.GET("/:id/reports", h.Cycle.ListReports)

	reports := authed.Group("/reports")
	reports.GET("/:id", h.Cycle.GetReport)
	reports.PATCH("/:id/assignment", manageCycles, h.Cycle.AssignReport)
	reports.GET("/:id/phases", h.Cycle.ListPhases)

	tester := middleware.RequireRoles(models.RoleAdmin, models.RoleTester)
	reviewer := middleware.RequireRoles(models.RoleAdmin, models.RoleReportOwner, models.RoleTestExecutive)

	phases := authed.Group("/phases")
	phases.POST("/:id/advance", tester, h.Cycle.AdvancePhase)
	phases.GET("/:id/versions/current", h.Version.Current)

	versions := authed.Group("/versions")
	versions.POST("", tester, h.Version.Create)
	versions.GET("", h.Version.List)
	versions.GET("/:id", h.Version.Get)
	versions.POST("/:id/submit", tester, h.Version.Submit)
	versions.POST("/:id/approve", reviewer, h.Version.Approve)
	versions.POST("/:id/reject", reviewer, h.Version.Reject)
	versions.GET("/:id/dashboard", h.Dashboard.Get)
	versions.POST("/:id/items", tester, h.Item.Create)
	versions.GET("/:id/items", h.Item.List)

	items := authed.Group("/items")
	items.GET("/:id", h.Item.Get)
	items.PUT("/:id/decision", tester, h.Item.Decision)
	items.PUT("/:id/owner-decision", middleware.RequireRoles(models.RoleAdmin, models.RoleReportOwner), h.Item.OwnerDecision)
	items.POST("/bulk-decision", tester, h.Item.BulkDecision)

	exports := authed.Group("/exports")
	exports.POST("", h.Export.Request)
	exports.GET("/:id", h.Export.Status)

	// Download is authorised by the signed token carried in the URL, so it
	// stays outside the JWT group to keep links usable from a browser.
	v1.GET("/exports/download",
		middleware.OptionalJWT(authService),
		middleware.Audit(userRepo, models.AuditActionExportDownload, "export"),
		h.Export.Download)
}
