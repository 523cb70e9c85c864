// Package server is the HTTP surface over the planner.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/calendar"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Server serves the plan routes.
type Server struct {
	planner *tripweaver.Planner
	engine  *gin.Engine
}

// New builds the router.
func New(planner *tripweaver.Planner) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), TraceMiddleware())

	s := &Server{planner: planner, engine: r}
	s.RegisterRoutes(r)
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)

	plans := r.Group("/plans")
	plans.POST("", s.createPlan)
	plans.POST("/async", s.createPlanAsync)
	plans.GET("/pending", s.pendingApprovals)
	plans.GET("/:id", s.planStatus)
	plans.GET("/:id/result", s.planResult)
	plans.POST("/:id/approval", s.resolveApproval)
	plans.DELETE("/:id", s.cancelPlan)
	plans.GET("/:id/calendar", s.planCalendar)
	plans.GET("/:id/events", s.planEvents)
}

func (s *Server) health(c *gin.Context) {
	m := s.planner.Metrics()
	respond(c, http.StatusOK, gin.H{
		"runs":                 len(s.planner.ListRuns()),
		"runs_started":         m.RunsStarted,
		"runs_completed":       m.RunsCompleted,
		"average_duration_ms":  m.AverageDuration().Milliseconds(),
		"fallback_itineraries": m.FallbackItineraries,
	}, "ok")
}

func bindRequest(c *gin.Context) (trip.Request, bool) {
	var req trip.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

// createPlan runs synchronously. A failed run answers 500 with the
// failure envelope; cancelled runs answer 409 with the partial state.
func (s *Server) createPlan(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	state, err := s.planner.Run(c.Request.Context(), req)
	if state == nil {
		handleError(c, err)
		return
	}
	switch state.CurrentStep {
	case tripweaver.StateFailed:
		c.JSON(http.StatusInternalServerError, state.Result())
	case tripweaver.StateCancelled:
		c.JSON(http.StatusConflict, state)
	default:
		respond(c, http.StatusOK, state, state.SummaryMessage)
	}
}

func (s *Server) createPlanAsync(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	runID, err := s.planner.RunAsync(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Location", "/plans/"+runID)
	respond(c, http.StatusAccepted, gin.H{"run_id": runID}, "planning started")
}

func (s *Server) pendingApprovals(c *gin.Context) {
	respond(c, http.StatusOK, s.planner.PendingApprovals(), "")
}

func (s *Server) planStatus(c *gin.Context) {
	status, err := s.planner.RunStatus(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, status, "")
}

func (s *Server) planResult(c *gin.Context) {
	runID := c.Param("id")
	if _, err := s.planner.RunStatus(runID); err != nil {
		handleError(c, err)
		return
	}
	state, _ := s.planner.RunResult(runID)
	if state == nil {
		respondError(c, http.StatusConflict, "run is still in progress")
		return
	}
	if state.CurrentStep == tripweaver.StateFailed {
		c.JSON(http.StatusOK, state.Result())
		return
	}
	respond(c, http.StatusOK, state, state.SummaryMessage)
}

type approvalBody struct {
	Decision string `json:"decision" binding:"required"`
	Token    string `json:"token"`
}

// resolveApproval answers a run waiting in this process, or resumes a
// run persisted at the checkpoint by an earlier process.
func (s *Server) resolveApproval(c *gin.Context) {
	runID := c.Param("id")
	var body approvalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	decision, err := tripweaver.ParseDecision(body.Decision)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	token := body.Token
	if token == "" {
		for _, p := range s.planner.PendingApprovals() {
			if p.RunID == runID {
				token = p.Token
			}
		}
	}
	if token != "" {
		if err := s.planner.ResolveApproval(token, decision); err != nil {
			handleError(c, err)
			return
		}
		respond(c, http.StatusAccepted, gin.H{"run_id": runID, "decision": decision}, "decision delivered")
		return
	}

	state, err := s.planner.ResumeFromCheckpoint(c.Request.Context(), runID, decision)
	if state == nil {
		handleError(c, err)
		return
	}
	if state.CurrentStep == tripweaver.StateFailed {
		c.JSON(http.StatusInternalServerError, state.Result())
		return
	}
	respond(c, http.StatusOK, state, state.SummaryMessage)
}

func (s *Server) cancelPlan(c *gin.Context) {
	runID := c.Param("id")
	cancelled, err := s.planner.CancelRun(runID)
	if err != nil {
		handleError(c, err)
		return
	}
	if !cancelled {
		respondError(c, http.StatusConflict, "run has already finished")
		return
	}
	respond(c, http.StatusAccepted, gin.H{"run_id": runID}, "cancellation requested")
}

func (s *Server) planCalendar(c *gin.Context) {
	runID := c.Param("id")
	if _, err := s.planner.RunStatus(runID); err != nil {
		handleError(c, err)
		return
	}
	state, _ := s.planner.RunResult(runID)
	if state == nil || state.Itinerary == nil {
		respondError(c, http.StatusNotFound, "run has no itinerary")
		return
	}
	text, err := calendar.Export(state.Itinerary, runID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="trip-%s.ics"`, runID))
	c.Data(http.StatusOK, calendar.ContentType, []byte(text))
}

type streamEvent struct {
	Type      eventbus.EventType `json:"type"`
	Stage     interface{}        `json:"stage,omitempty"`
	Payload   interface{}        `json:"payload,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

func terminalEvent(t eventbus.EventType) bool {
	switch t {
	case eventbus.EventRunCompleted, eventbus.EventRunFailed, eventbus.EventRunTerminated, eventbus.EventRunCancelled:
		return true
	}
	return false
}

// planEvents streams the run's events as server-sent events, starting with
// its current status, until the run ends or the client goes away. Events
// are dropped for clients that fall behind.
func (s *Server) planEvents(c *gin.Context) {
	runID := c.Param("id")
	bus := s.planner.EventBus()
	if bus == nil {
		respondError(c, http.StatusNotImplemented, "event bus is disabled")
		return
	}

	events := make(chan streamEvent, 32)
	subID, err := bus.SubscribeAll(func(ctx context.Context, e eventbus.Event) error {
		if eventbus.RunID(e) != runID {
			return nil
		}
		select {
		case events <- streamEvent{Type: e.Type(), Stage: e.Metadata()[eventbus.MetaStage], Payload: e.Payload(), Timestamp: e.Timestamp()}:
		default:
		}
		return nil
	})
	if err != nil {
		handleError(c, err)
		return
	}
	defer func() { _ = bus.Unsubscribe(subID) }()

	status, err := s.planner.RunStatus(runID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.SSEvent("status", status)
	if status.IsComplete {
		return
	}
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e := <-events:
			c.SSEvent(string(e.Type), e)
			return !terminalEvent(e.Type)
		}
	})
}

// ListenAndServe runs the server until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
