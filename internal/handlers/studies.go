package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/chi/v5"
)

// StudyService defines the interface for study business logic
type StudyService interface {
	Create(ctx context.Context, caller *models.Caller, study *models.Study) (*models.Study, error)
	Get(ctx context.Context, key string) (*models.Study, error)
	List(ctx context.Context, caller *models.Caller) ([]*models.Study, error)
}

type StudyHandler struct {
	service StudyService
	policy  Authorizer
}

func NewStudyHandler(service StudyService, policy Authorizer) *StudyHandler {
	return &StudyHandler{service: service, policy: policy}
}

type CreateStudyRequest struct {
	TeamKey      string                   `json:"teamKey" validate:"required"`
	Generalities models.StudyGeneralities `json:"generalities" validate:"required"`
}

func (h *StudyHandler) RegisterRoutes(router chi.Router) {
	router.Route("/studies", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{studyKey}", h.Get)
	})
}

func (h *StudyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateStudyRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	caller, ok := authorize(w, r, h.policy, auth.ActionStudyCreate, auth.Resource{TeamKey: req.TeamKey})
	if !ok {
		return
	}

	study, err := h.service.Create(r.Context(), caller, &models.Study{
		TeamKey:      req.TeamKey,
		Generalities: req.Generalities,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, study)
}

func (h *StudyHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetCallerFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	studies, err := h.service.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, studies)
}

func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	studyKey := chi.URLParam(r, "studyKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionStudyRead, auth.Resource{StudyKey: studyKey}); !ok {
		return
	}

	study, err := h.service.Get(r.Context(), studyKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, study)
}
