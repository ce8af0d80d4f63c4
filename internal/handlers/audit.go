package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
)

// AuditLogService lists stored audit entries
type AuditLogService interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	service AuditLogService
	policy  Authorizer
}

func NewAuditHandler(service AuditLogService, policy Authorizer) *AuditHandler {
	return &AuditHandler{service: service, policy: policy}
}

// List handles GET /auditlog?studyKey&userKey&event&limit&offset.
// Researchers must name a study of one of their teams.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AuditLogFilter{
		StudyKey: q.Get("studyKey"),
		UserKey:  q.Get("userKey"),
		Event:    q.Get("event"),
		Limit:    100,
	}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	if _, ok := authorize(w, r, h.policy, auth.ActionAuditRead, auth.Resource{StudyKey: filter.StudyKey}); !ok {
		return
	}

	logs, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(logs)))
	pkghttp.WriteJSON(w, http.StatusOK, logs)
}
