package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"go.uber.org/zap"
)

const (
	eventStatus = "status"
	eventDone   = "done"
	eventError  = "error"
)

type runOutcome struct {
	run *pipeline.Run
	err error
}

// HandleProfileStream runs the pipeline and pushes progress over Server-Sent
// Events: zero or more "status" events, then exactly one "done" or "error".
// POST /api/profile/stream
func (h *ProfileHandler) HandleProfileStream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	// Disconnect cancels the run, which interrupts any retry wait.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := progress.NewChannelSink(ctx, 16)
	results := make(chan runOutcome, 1)
	go func() {
		run, err := h.runner.Run(ctx, req, sink)
		results <- runOutcome{run: run, err: err}
	}()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	w.Flush()

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("subject", req.Name))
			return
		case evt := <-sink.Events():
			h.writeStatus(c, evt)
		case res := <-results:
			// Every event was handed to the sink before Run returned; flush the backlog
			// so ordering holds.
			for drained := false; !drained; {
				select {
				case evt := <-sink.Events():
					h.writeStatus(c, evt)
				default:
					drained = true
				}
			}
			h.writeTerminal(c, res)
			return
		case <-hb.C:
			// Keeps idle connections open through proxies; clients ignore comments.
			_, _ = w.WriteString(": ping\n\n")
			w.Flush()
		}
	}
}

func (h *ProfileHandler) writeStatus(c *gin.Context, evt progress.Event) {
	if evt.Type == progress.EventState && pipeline.State(evt.State).Terminal() {
		return
	}
	c.SSEvent(eventStatus, statusPayload{Message: evt.Message})
	c.Writer.Flush()
}

func (h *ProfileHandler) writeTerminal(c *gin.Context, res runOutcome) {
	if res.err != nil {
		_, body := errorBody(res.err)
		c.SSEvent(eventError, statusPayload{Message: body.Error})
	} else {
		c.SSEvent(eventDone, profileResponse{Profile: res.run.Record})
	}
	c.Writer.Flush()
}
