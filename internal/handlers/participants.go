package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/services"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ParticipantService defines the interface for participant business logic
type ParticipantService interface {
	GetByKey(ctx context.Context, key string) (*models.Participant, error)
	GetByUserKey(ctx context.Context, userKey string) (*models.Participant, error)
	List(ctx context.Context, caller *models.Caller, filter services.ParticipantFilter) ([]*models.Participant, error)
	Create(ctx context.Context, caller *models.Caller, p *models.Participant) (*models.Participant, error)
	UpdateProfile(ctx context.Context, caller *models.Caller, userKey string, patch models.ProfilePatch) (*models.Participant, error)
	UpdateStudyStatus(ctx context.Context, caller *models.Caller, userKey, studyKey string, status models.StudyStatus) (*models.Participant, error)
	StatusStats(ctx context.Context, studyKey string) ([]models.StatusCount, error)
	Delete(ctx context.Context, caller *models.Caller, userKey string) error
}

// ParticipantHandler handles participant profile and enrollment requests
type ParticipantHandler struct {
	service ParticipantService
	policy  Authorizer
}

func NewParticipantHandler(service ParticipantService, policy Authorizer) *ParticipantHandler {
	return &ParticipantHandler{service: service, policy: policy}
}

// RegisterRoutes registers all participant routes with the chi router
func (h *ParticipantHandler) RegisterRoutes(router chi.Router) {
	router.Route("/participants", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/statusStats/{studyKey}", h.StatusStats)
		r.Get("/byuserkey/{userKey}", h.GetByUserKey)
		r.Patch("/byuserkey/{userKey}", h.UpdateProfile)
		r.Delete("/byuserkey/{userKey}", h.DeleteByUserKey)
		r.Patch("/byuserkey/{userKey}/studies/{studyKey}", h.UpdateStudyStatus)
		r.Get("/{participantKey}", h.Get)
		r.Delete("/{participantKey}", h.Delete)
	})
}

// List handles GET /participants?teamKey&studyKey&currentStatus.
// Participants receive their own profile as a single object.
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.ParticipantFilter{
		TeamKey:       q.Get("teamKey"),
		StudyKey:      q.Get("studyKey"),
		CurrentStatus: q.Get("currentStatus"),
	}

	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantList, auth.Resource{
		TeamKey:  filter.TeamKey,
		StudyKey: filter.StudyKey,
	})
	if !ok {
		return
	}

	if caller.IsParticipant() {
		p, err := h.service.GetByUserKey(r.Context(), caller.UserKey)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, p)
		return
	}

	list, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, list)
}

func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByKey(r.Context(), chi.URLParam(r, "participantKey"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if _, ok := authorize(w, r, h.policy, auth.ActionParticipantRead, auth.Resource{UserKey: p.UserKey}); !ok {
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, p)
}

func (h *ParticipantHandler) GetByUserKey(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionParticipantRead, auth.Resource{UserKey: userKey}); !ok {
		return
	}

	p, err := h.service.GetByUserKey(r.Context(), userKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, p)
}

// Create stores the calling participant's profile. userKey and createdTS are
// set by the server.
func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantCreate, auth.Resource{})
	if !ok {
		return
	}

	var p models.Participant
	if err := decodeRequest(r, &p); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), caller, &p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, created)
}

// UpdateProfile merges the profile fields present in the body into the
// stored profile. Absent fields are kept; studies and createdTS are ignored.
func (h *ParticipantHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")

	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantUpdate, auth.Resource{UserKey: userKey})
	if !ok {
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	patch, err := models.NewProfilePatch(body)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid profile fields")
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), caller, userKey, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, updated)
}

// UpdateStudyStatus replaces the participant's status entry for one study.
// Body example: {"currentStatus": "withdrawn", "timestamp": "...", "withdrawalReason": "quit"}
func (h *ParticipantHandler) UpdateStudyStatus(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	studyKey := chi.URLParam(r, "studyKey")

	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantUpdateStudyStatus, auth.Resource{
		UserKey:  userKey,
		StudyKey: studyKey,
	})
	if !ok {
		return
	}

	var status models.StudyStatus
	if err := decodeRequest(r, &status); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.service.UpdateStudyStatus(r.Context(), caller, userKey, studyKey, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, updated)
}

func (h *ParticipantHandler) StatusStats(w http.ResponseWriter, r *http.Request) {
	studyKey := chi.URLParam(r, "studyKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionStudyStats, auth.Resource{StudyKey: studyKey}); !ok {
		return
	}

	stats, err := h.service.StatusStats(r.Context(), studyKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// DeleteByUserKey removes a participant and everything collected from them
func (h *ParticipantHandler) DeleteByUserKey(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")

	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantDelete, auth.Resource{UserKey: userKey})
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, userKey); err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w)
}

// Delete is DeleteByUserKey addressed by participant key
func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByKey(r.Context(), chi.URLParam(r, "participantKey"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	caller, ok := authorize(w, r, h.policy, auth.ActionParticipantDelete, auth.Resource{UserKey: p.UserKey})
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, p.UserKey); err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w)
}
