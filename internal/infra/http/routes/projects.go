package routes

import (
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/domain/user"
)

// registerProjectRoutes registers project and attachment endpoints.
func registerProjectRoutes(router Router, h Handlers, authenticated Middleware) {
	requireTenant := middleware.RequireTenant()

	projectsRead := middleware.RequirePermission(user.ResourceProjects, user.LevelRead)
	projectsWrite := middleware.RequirePermission(user.ResourceProjects, user.LevelWrite)
	attachmentsRead := middleware.RequirePermission(user.ResourceAttachments, user.LevelRead)
	attachmentsWrite := middleware.RequirePermission(user.ResourceAttachments, user.LevelWrite)

	router.Group("/api/v1/projects", func(r Router) {
		r.GET("/", h.Project.List, projectsRead)
		r.POST("/", h.Project.Create, projectsWrite)
		r.GET("/{projectId}", h.Project.Get, projectsRead)
		r.PUT("/{projectId}", h.Project.Update, projectsWrite)
		r.POST("/{projectId}/status", h.Project.ChangeStatus, projectsWrite)
		r.PUT("/{projectId}/dates", h.Project.SetDates, projectsWrite)
		r.DELETE("/{projectId}", h.Project.Delete, projectsWrite)
		r.GET("/{projectId}/budget", h.Project.Budget, projectsRead)

		r.GET("/{projectId}/attachments", h.Attachment.List, attachmentsRead)
		r.POST("/{projectId}/attachments", h.Attachment.Upload, attachmentsWrite)
	}, authenticated, requireTenant)

	router.Group("/api/v1/attachments", func(r Router) {
		r.GET("/{attachmentId}/url", h.Attachment.DownloadURL, attachmentsRead)
		r.DELETE("/{attachmentId}", h.Attachment.Delete, attachmentsWrite)
	}, authenticated, requireTenant)
}
