package handlers

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/services"
	pkghttp "github.com/BradenHooton/mobistudy/pkg/http"
	"github.com/BradenHooton/mobistudy/pkg/logger"
)

// TesterHandler exposes admin-only diagnostics
type TesterHandler struct {
	mailer services.EmailSender
	policy Authorizer
	logger *slog.Logger
}

func NewTesterHandler(mailer services.EmailSender, policy Authorizer, logger *slog.Logger) *TesterHandler {
	return &TesterHandler{mailer: mailer, policy: policy, logger: logger}
}

type SendTestEmailRequest struct {
	Address string `json:"address" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// SendEmail handles POST /tester/sendemail
func (h *TesterHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.policy, auth.ActionTesterSendEmail, auth.Resource{}); !ok {
		return
	}

	var req SendTestEmailRequest
	if err := decodeRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.mailer.SendEmail(r.Context(), req.Address, req.Subject, req.Content); err != nil {
		h.logger.ErrorContext(r.Context(), "test email cannot be sent",
			slog.String("to", logger.SanitizedEmail(req.Address)),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Email cannot be sent")
		return
	}

	h.logger.InfoContext(r.Context(), "test email sent", slog.String("to", logger.SanitizedEmail(req.Address)))
	pkghttp.WriteOK(w)
}
