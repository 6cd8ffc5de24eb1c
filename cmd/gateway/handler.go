// In file: cmd/gateway/handler.go
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/dispatch"
	"github.com/dileep-u-k/tool-router/internal/llm"
)

// usageRecorder receives per-provider call outcomes. *llm.Profiler implements it.
type usageRecorder interface {
	RecordSuccess(ctx context.Context, provider string, latency time.Duration, usage api.Usage)
	RecordFailure(ctx context.Context, provider string)
}

// GatewayHandler serves the dispatch API on top of a Router.
type GatewayHandler struct {
	router            *dispatch.Router
	selectionProvider string
	providers         []string
	recorder          usageRecorder
}

// NewGatewayHandler creates the handler. recorder may be nil when profiling is disabled.
func NewGatewayHandler(router *dispatch.Router, selectionProvider string, providers []string, recorder usageRecorder) *GatewayHandler {
	return &GatewayHandler{
		router:            router,
		selectionProvider: selectionProvider,
		providers:         providers,
		recorder:          recorder,
	}
}

// RegisterRoutes mounts every endpoint on engine.
func (h *GatewayHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", h.HandleHealth)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/dispatch", h.HandleDispatch)
		v1.GET("/catalog", h.HandleCatalog)
		v1.GET("/bindings", h.HandleBindings)
	}
}

// HandleDispatch runs one dispatch cycle for the request body.
func (h *GatewayHandler) HandleDispatch(c *gin.Context) {
	var req api.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	out, err := h.router.Dispatch(c.Request.Context(), dispatch.Request{
		Input:       req.Input,
		RequireTool: req.RequireTool,
	})
	if out != nil {
		h.record(context.WithoutCancel(c.Request.Context()), out.Trace)
	}

	if err != nil {
		var derr *dispatch.Error
		if !errors.As(err, &derr) || out == nil {
			log.Error().Err(err).Msg("Dispatch failed before the cycle started")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(statusFor(derr.Kind), api.ErrorResponse{
			CycleID: out.CycleID,
			Error:   derr.Error(),
			Kind:    string(derr.Kind),
			Phase:   string(derr.Phase),
			Tool:    derr.Tool,
			Trace:   toAPITrace(out.Trace),
		})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(out))
}

// HandleCatalog returns the catalog version and every tool definition.
func (h *GatewayHandler) HandleCatalog(c *gin.Context) {
	catalog := h.router.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"catalog_version": catalog.Version(),
		"tools":           catalog.Definitions(),
	})
}

// HandleBindings returns the effective provider of every catalog tool.
func (h *GatewayHandler) HandleBindings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"selection_provider": h.selectionProvider,
		"bindings":           h.router.Binding().Entries(),
	})
}

// HandleHealth reports liveness and build information.
func (h *GatewayHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"build":           GetBuildInfo(),
		"catalog_version": h.router.Catalog().Version(),
		"providers":       h.providers,
	})
}

// statusFor maps a dispatch error kind onto an HTTP status.
func statusFor(kind dispatch.Kind) int {
	switch kind {
	case dispatch.KindNoToolSelected, dispatch.KindUnroutableTool, dispatch.KindUnknownTool, dispatch.KindValidationError:
		return http.StatusUnprocessableEntity
	case dispatch.KindGatewayError:
		return http.StatusBadGateway
	case dispatch.KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case dispatch.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *GatewayHandler) toResponse(out *dispatch.Outcome) api.DispatchResponse {
	resp := api.DispatchResponse{
		CycleID:        out.CycleID,
		State:          string(out.State),
		Tool:           out.Tool,
		SelectedBy:     out.SelectedBy,
		ConfirmedBy:    out.ConfirmedBy,
		Answer:         out.Answer,
		Usage:          out.Usage,
		LatencyMS:      out.Duration.Milliseconds(),
		CatalogVersion: h.router.Catalog().Version(),
		Trace:          toAPITrace(out.Trace),
	}
	if out.Result != nil {
		resp.Success = out.Result.Success
		resp.Output = out.Result.Output
		resp.ErrorKind = string(out.Result.ErrorKind)
	} else {
		resp.Success = true
		resp.Output = out.Answer
	}
	return resp
}

func toAPITrace(trace []dispatch.PhaseTrace) []api.PhaseTrace {
	if len(trace) == 0 {
		return nil
	}
	converted := make([]api.PhaseTrace, 0, len(trace))
	for _, t := range trace {
		converted = append(converted, api.PhaseTrace{
			Phase:     string(t.Phase),
			Provider:  t.Provider,
			LatencyMS: t.Latency.Milliseconds(),
			Error:     t.Err,
		})
	}
	return converted
}

// record feeds provider-facing phases of a cycle to the profiler.
func (h *GatewayHandler) record(ctx context.Context, trace []dispatch.PhaseTrace) {
	if h.recorder == nil {
		return
	}
	for _, t := range trace {
		if t.Provider == "" || (t.Phase != dispatch.StateSelecting && t.Phase != dispatch.StateConfirming) {
			continue
		}
		if t.Err != "" {
			h.recorder.RecordFailure(ctx, t.Provider)
			continue
		}
		h.recorder.RecordSuccess(ctx, t.Provider, t.Latency, t.Usage)
	}
}

var _ usageRecorder = (*llm.Profiler)(nil)
