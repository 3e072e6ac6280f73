// Package http provides HTTP handlers for pseudonymization, reversal and session deletion.
package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	"github.com/allisson/pseudonymizer/internal/httputil"
	"github.com/allisson/pseudonymizer/internal/pseudonym/http/dto"
	pseudonymUseCase "github.com/allisson/pseudonymizer/internal/pseudonym/usecase"
	sessionUseCase "github.com/allisson/pseudonymizer/internal/session/usecase"
	customValidation "github.com/allisson/pseudonymizer/internal/validation"
)

// CallerIDHeader carries the caller identity on requests without a JSON body.
const CallerIDHeader = "X-Caller-Id"

// PseudonymHandler handles the pseudonymization API.
type PseudonymHandler struct {
	pseudonymUseCase pseudonymUseCase.PseudonymUseCase
	sessionUseCase   sessionUseCase.SessionUseCase
	logger           *slog.Logger
}

// NewPseudonymHandler creates a new pseudonym handler with required dependencies.
func NewPseudonymHandler(
	pseudonymUseCase pseudonymUseCase.PseudonymUseCase,
	sessionUseCase sessionUseCase.SessionUseCase,
	logger *slog.Logger,
) *PseudonymHandler {
	return &PseudonymHandler{
		pseudonymUseCase: pseudonymUseCase,
		sessionUseCase:   sessionUseCase,
		logger:           logger,
	}
}

// PseudonymizeHandler replaces personal data in a text with session-scoped pseudonyms.
// POST /v1/pseudonymize - Returns 200 OK with the sanitized text and its session.
func (h *PseudonymHandler) PseudonymizeHandler(c *gin.Context) {
	var req dto.PseudonymizeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.pseudonymUseCase.Pseudonymize(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPseudonymizeOutputToResponse(output))
}

// DepseudonymizeHandler restores the original values behind the pseudonyms of a session.
// POST /v1/depseudonymize - Returns 200 OK with the original text. Pseudonyms unknown to the
// session are left in place and listed as anomalous.
func (h *PseudonymHandler) DepseudonymizeHandler(c *gin.Context) {
	var req dto.DepseudonymizeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.pseudonymUseCase.Reveal(
		c.Request.Context(),
		uuid.MustParse(req.SessionID),
		req.CallerID,
		req.Text,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRevealResultToResponse(result))
}

// DeleteSessionHandler purges a session and all of its mappings immediately.
// DELETE /v1/session/:id - Requires the X-Caller-Id header. Returns 204 No Content.
func (h *PseudonymHandler) DeleteSessionHandler(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, apperrors.New("invalid session id format"), h.logger)
		return
	}

	callerID := strings.TrimSpace(c.GetHeader(CallerIDHeader))
	if callerID == "" {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if err := h.sessionUseCase.Delete(c.Request.Context(), sessionID, callerID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
