package http

import (
	"net/http"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/scope"
)

// ProvisionTenant handles POST /admin/v1/tenants.
func (h *Handlers) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.ProvisionRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Slug, "slug") {
		return
	}
	t, err := h.Partitions.Provision(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type changePlanRequest struct {
	Plan tenant.Plan `json:"plan"`
}

// ChangePlan handles PUT /admin/v1/tenants/{id}/plan.
func (h *Handlers) ChangePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[changePlanRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, string(req.Plan), "plan") {
		return
	}
	t, err := h.Partitions.ChangePlan(r.Context(), urlParam(r, "id"), req.Plan)
	if t == nil && err != nil {
		writeDomainError(w, r, err, "tenant not found")
		return
	}
	writeMutation(w, r, http.StatusOK, t, err)
}

// SettingsReport handles GET /admin/v1/reports/settings.
func (h *Handlers) SettingsReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.CountSettings(r.Context(), scope.NewUnscoped("admin settings report"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
