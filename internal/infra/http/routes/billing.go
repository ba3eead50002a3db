package routes

import (
	"github.com/buildledger/api/internal/infra/http/middleware"
	"github.com/buildledger/api/pkg/domain/user"
)

// registerBillingRoutes registers cost entry, change order, and
// invoice endpoints.
func registerBillingRoutes(router Router, h Handlers, authenticated Middleware) {
	requireTenant := middleware.RequireTenant()

	costsRead := middleware.RequirePermission(user.ResourceCosts, user.LevelRead)
	costsWrite := middleware.RequirePermission(user.ResourceCosts, user.LevelWrite)

	router.Group("/api/v1/costs", func(r Router) {
		r.GET("/", h.Cost.ListEntries, costsRead)
		r.POST("/", h.Cost.CreateEntry, costsWrite)
		r.GET("/{entryId}", h.Cost.GetEntry, costsRead)
		r.PUT("/{entryId}", h.Cost.UpdateEntry, costsWrite)
		r.DELETE("/{entryId}", h.Cost.DeleteEntry, costsWrite)
	}, authenticated, requireTenant)

	ordersRead := middleware.RequirePermission(user.ResourceChangeOrders, user.LevelRead)
	ordersWrite := middleware.RequirePermission(user.ResourceChangeOrders, user.LevelWrite)

	router.Group("/api/v1/change-orders", func(r Router) {
		r.GET("/", h.Cost.ListChangeOrders, ordersRead)
		r.POST("/", h.Cost.CreateChangeOrder, ordersWrite)
		r.GET("/{orderId}", h.Cost.GetChangeOrder, ordersRead)
		r.POST("/{orderId}/submit", h.Cost.SubmitChangeOrder, ordersWrite)
		r.POST("/{orderId}/approve", h.Cost.ApproveChangeOrder, ordersWrite)
		r.POST("/{orderId}/reject", h.Cost.RejectChangeOrder, ordersWrite)
	}, authenticated, requireTenant)

	invoicesRead := middleware.RequirePermission(user.ResourceInvoices, user.LevelRead)
	invoicesWrite := middleware.RequirePermission(user.ResourceInvoices, user.LevelWrite)

	router.Group("/api/v1/invoices", func(r Router) {
		r.GET("/", h.Invoice.List, invoicesRead)
		r.POST("/", h.Invoice.Create, invoicesWrite)
		r.GET("/{invoiceId}", h.Invoice.Get, invoicesRead)
		r.PUT("/{invoiceId}/items", h.Invoice.ReplaceItems, invoicesWrite)
		r.POST("/{invoiceId}/send", h.Invoice.Send, invoicesWrite)
		r.POST("/{invoiceId}/pay", h.Invoice.MarkPaid, invoicesWrite)
		r.POST("/{invoiceId}/void", h.Invoice.Void, invoicesWrite)
	}, authenticated, requireTenant)
}
