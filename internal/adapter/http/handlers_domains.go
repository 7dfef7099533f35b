package http

import (
	"net/http"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
)

type bindDomainRequest struct {
	Hostname  string `json:"hostname"`
	IsPrimary bool   `json:"is_primary"`
	Override  bool   `json:"override,omitempty"`
}

// BindDomain handles POST /admin/v1/tenants/{id}/domains.
func (h *Handlers) BindDomain(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[bindDomainRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Hostname, "hostname") {
		return
	}
	d, err := h.Directory.Bind(r.Context(), tenant.BindRequest{
		Hostname:  req.Hostname,
		TenantID:  urlParam(r, "id"),
		IsPrimary: req.IsPrimary,
		Override:  req.Override,
	})
	if d == nil && err != nil {
		writeDomainError(w, r, err, "tenant not found")
		return
	}
	writeMutation(w, r, http.StatusCreated, d, err)
}

// UnbindDomain handles DELETE /admin/v1/domains/{hostname}.
func (h *Handlers) UnbindDomain(w http.ResponseWriter, r *http.Request) {
	err := h.Directory.Unbind(r.Context(), urlParam(r, "hostname"))
	writeMutation(w, r, http.StatusNoContent, nil, err)
}

// GetDomain handles GET /admin/v1/domains/{hostname}.
func (h *Handlers) GetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.Directory.Resolve(r.Context(), urlParam(r, "hostname"))
	if err != nil {
		writeDomainError(w, r, err, "domain not bound")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
