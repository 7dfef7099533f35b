package http

import (
	"net/http"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/scope"
)

// tenantSummary is the resolved context exposed to tenant-facing clients.
type tenantSummary struct {
	TenantID  string        `json:"tenant_id"`
	Slug      string        `json:"slug"`
	Partition string        `json:"partition"`
	Hostname  string        `json:"hostname"`
	Plan      tenant.Plan   `json:"plan"`
	Limits    tenant.Limits `json:"limits"`
}

// requestScope returns the partition scope bound by host resolution.
func requestScope(w http.ResponseWriter, r *http.Request) (scope.Tenant, bool) {
	sc, ok := scope.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tenant")
	}
	return sc, ok
}

// CurrentTenant handles GET /api/v1/tenant.
func (h *Handlers) CurrentTenant(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tenantSummary{
		TenantID:  sc.TenantID(),
		Slug:      sc.Slug(),
		Partition: sc.Partition(),
		Hostname:  sc.Hostname(),
		Plan:      sc.Plan(),
		Limits:    sc.Plan().Limits(),
	})
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type putSettingRequest struct {
	Value string `json:"value"`
}

// GetSetting handles GET /api/v1/settings/{key}.
func (h *Handlers) GetSetting(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	key := urlParam(r, "key")
	v, err := h.Settings.Get(r.Context(), sc, key)
	if err != nil {
		writeDomainError(w, r, err, "setting not found")
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: v})
}

// PutSetting handles PUT /api/v1/settings/{key}.
func (h *Handlers) PutSetting(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[putSettingRequest](w, r)
	if !ok {
		return
	}
	key := urlParam(r, "key")
	if err := h.Settings.Put(r.Context(), sc, key, req.Value); err != nil {
		writeDomainError(w, r, err, "setting not found")
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: req.Value})
}

// DeleteSetting handles DELETE /api/v1/settings/{key}.
func (h *Handlers) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Settings.Delete(r.Context(), sc, urlParam(r, "key")); err != nil {
		writeDomainError(w, r, err, "setting not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
