package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"go.uber.org/zap"
)

// Runner executes one profile pipeline.
type Runner interface {
	Run(ctx context.Context, req profile.Request, sink progress.Sink) (*pipeline.Run, error)
}

type Options struct {
	// HeartbeatInterval is the gap between SSE ping comments.
	HeartbeatInterval time.Duration
}

// ProfileHandler serves the single-response and streaming profile endpoints.
type ProfileHandler struct {
	runner    Runner
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewProfileHandler(runner Runner, logger *zap.Logger, opts Options) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	return &ProfileHandler{runner: runner, logger: logger, heartbeat: opts.HeartbeatInterval}
}

// profileBody accepts "company" as an alias for "organisation".
type profileBody struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organisation string `json:"organisation"`
	Company      string `json:"company"`
}

func (b profileBody) request() profile.Request {
	org := b.Organisation
	if strings.TrimSpace(org) == "" {
		org = b.Company
	}
	return profile.Request{Name: b.Name, Role: b.Role, Organisation: org}.Normalized()
}

type profileResponse struct {
	Profile *profile.Record `json:"profile"`
}

type errorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

type statusPayload struct {
	Message string `json:"message"`
}

// bind decodes and validates the request. On failure it writes a 400 and
// returns false; no pipeline work has started at that point.
func (h *ProfileHandler) bind(c *gin.Context) (profile.Request, bool) {
	var body profileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Info("rejecting malformed profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return profile.Request{}, false
	}
	req := body.request()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Name is required"})
		return profile.Request{}, false
	}
	return req, true
}

// HandleProfile runs the pipeline and answers with one JSON document.
// POST /api/profile
func (h *ProfileHandler) HandleProfile(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	run, err := h.runner.Run(c.Request.Context(), req, progress.Discard)
	if err != nil {
		status, body := errorBody(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, profileResponse{Profile: run.Record})
}

func errorBody(err error) (int, errorResponse) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
	body := errorResponse{Error: pe.Message}
	if pe.Kind == pipeline.KindExtraction {
		body.Raw = pe.Raw
	}
	return statusFor(pe.Kind), body
}

func statusFor(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.KindInvalidRequest:
		return http.StatusBadRequest
	case pipeline.KindExternalOverloaded, pipeline.KindExternalRateLimited:
		return http.StatusServiceUnavailable
	case pipeline.KindExternalFatal:
		return http.StatusBadGateway
	case pipeline.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
