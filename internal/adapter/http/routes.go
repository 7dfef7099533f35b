package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/tenantgate/internal/domain/member"
	"github.com/Strob0t/tenantgate/internal/middleware"
)

// MountRoutes registers all routes on the given chi router.
//
// /admin/v1 is the platform surface: it is not host-resolved and requires the
// admin role from roleHeader. /api/v1 is tenant-facing: every request is
// resolved by its Host before any handler runs.
func MountRoutes(r chi.Router, h *Handlers, res middleware.Resolver, roleHeader string) {
	r.Get("/health", h.Health)

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireRole(roleHeader, member.RoleAdmin))

		// Tenants
		r.Post("/tenants", h.ProvisionTenant)
		r.Get("/tenants", handleList(h.Partitions.List))
		r.Get("/tenants/{id}", handleGet(h.Partitions.Get, "tenant not found"))
		r.Post("/tenants/{id}/deactivate", handleMutate("id", h.Partitions.Deactivate))
		r.Post("/tenants/{id}/activate", handleMutate("id", h.Partitions.Activate))
		r.Put("/tenants/{id}/plan", h.ChangePlan)

		// Domains
		r.Get("/tenants/{id}/domains", handleListByParam("id", h.Directory.ListForTenant, "tenant not found"))
		r.Post("/tenants/{id}/domains", h.BindDomain)
		r.Get("/domains/{hostname}", h.GetDomain)
		r.Delete("/domains/{hostname}", h.UnbindDomain)
		r.Post("/domains/{hostname}/primary", handleMutate("hostname", h.Directory.SetPrimary))

		// Reports
		r.Get("/reports/settings", h.SettingsReport)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.HostResolution(res))

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "0.1.0"})
		})
		r.Get("/tenant", h.CurrentTenant)
		r.Get("/settings/{key}", h.GetSetting)
		r.Put("/settings/{key}", h.PutSetting)
		r.Delete("/settings/{key}", h.DeleteSetting)
	})
}
