package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/models"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TeamService defines the interface for team business logic
type TeamService interface {
	Create(ctx context.Context, caller *models.Caller, name string) (*models.Team, error)
	Get(ctx context.Context, key string) (*models.Team, error)
	List(ctx context.Context, caller *models.Caller) ([]*models.Team, error)
	RotateInvitationCode(ctx context.Context, key string) (*models.Team, error)
	AddResearcher(ctx context.Context, caller *models.Caller, invitationCode string) (*models.Team, error)
}

// TeamHandler handles research team requests
type TeamHandler struct {
	service TeamService
	policy  Authorizer
}

func NewTeamHandler(service TeamService, policy Authorizer) *TeamHandler {
	return &TeamHandler{service: service, policy: policy}
}

type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type AddResearcherRequest struct {
	InvitationCode string `json:"invitationCode" validate:"required"`
}

type InvitationCodeResponse struct {
	InvitationCode   string    `json:"invitationCode"`
	InvitationExpiry time.Time `json:"invitationExpiry"`
}

func (h *TeamHandler) RegisterRoutes(router chi.Router) {
	router.Route("/teams", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/invitationCode/{teamKey}", h.RotateInvitationCode)
		r.Post("/researcher/add", h.AddResearcher)
		r.Get("/{teamKey}", h.Get)
	})
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, h.policy, auth.ActionTeamCreate, auth.Resource{})
	if !ok {
		return
	}

	var req CreateTeamRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	team, err := h.service.Create(r.Context(), caller, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, team)
}

// List returns all teams for admins and the caller's teams for researchers
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetCallerFromContext(r.Context())
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	teams, err := h.service.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamKey := chi.URLParam(r, "teamKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionTeamRead, auth.Resource{TeamKey: teamKey}); !ok {
		return
	}

	team, err := h.service.Get(r.Context(), teamKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, team)
}

// RotateInvitationCode issues a new invitation code; older codes stop working
func (h *TeamHandler) RotateInvitationCode(w http.ResponseWriter, r *http.Request) {
	teamKey := chi.URLParam(r, "teamKey")

	if _, ok := authorize(w, r, h.policy, auth.ActionTeamRotateInvitation, auth.Resource{TeamKey: teamKey}); !ok {
		return
	}

	team, err := h.service.RotateInvitationCode(r.Context(), teamKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, InvitationCodeResponse{
		InvitationCode:   team.InvitationCode,
		InvitationExpiry: team.InvitationExpiry,
	})
}

// AddResearcher adds the calling researcher to the team named by the code
func (h *TeamHandler) AddResearcher(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, h.policy, auth.ActionTeamJoin, auth.Resource{})
	if !ok {
		return
	}

	var req AddResearcherRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.service.AddResearcher(r.Context(), caller, req.InvitationCode); err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w)
}
