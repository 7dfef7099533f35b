package http

import (
	"net/http"

	"github.com/Strob0t/tenantgate/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Partitions *service.PartitionService
	Directory  *service.DirectoryService
	Settings   *service.SettingsService
	Reports    *service.ReportService
}

// Health reports liveness. It is not routed through tenant resolution.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
