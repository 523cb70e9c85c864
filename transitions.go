package tripweaver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/gate"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/itinerary"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/risk"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Components are the collaborators the stage transitions close over.
type Components struct {
	Collectors  Collectors
	Risk        RiskAnalyzer
	Retriever   Retriever
	Synthesizer Synthesizer
	Approvals   ApprovalHandler
	Gate        *gate.Evaluator
	Results     ResultStore
	Config      Config
	Metrics     *PipelineMetrics
}

// CreatePlanningStateMachine wires every stage of the pipeline.
func CreatePlanningStateMachine(c Components, eventBus eventbus.EventBus) *StateMachine {
	sm := NewStateMachine(eventBus)
	sm.RegisterTransition(StateInit, createInitTransition(c))
	sm.RegisterTransition(StateFetchData, createFetchDataTransition(c))
	sm.RegisterTransition(StateAnalyzeRisks, createAnalyzeRisksTransition(c))
	sm.RegisterTransition(StateRetrieveKnowledge, createRetrieveKnowledgeTransition(c))
	sm.RegisterTransition(StateCheckMajorIssues, createCheckMajorIssuesTransition(c))
	sm.RegisterTransition(StateApprovalDecision, createApprovalTransition(c))
	sm.RegisterTransition(StateGenerateItinerary, createGenerateItineraryTransition(c))
	sm.RegisterTransition(StateOptimizeItinerary, createOptimizeTransition(c))
	sm.RegisterTransition(StateFinalize, createFinalizeTransition(c))
	return sm
}

func publish(ctx context.Context, eb eventbus.EventBus, t eventbus.EventType, state *PlanningState, payload interface{}) {
	if eb == nil {
		return
	}
	if err := eb.Publish(ctx, eventbus.NewRunEvent(t, state.RunID, string(state.CurrentStep), payload)); err != nil && ctx.Err() == nil {
		log.Printf("Event publish failed (event_type: %s, run_id: %s, error: %v)", t, state.RunID, err)
	}
}

func degraded(ctx context.Context, eb eventbus.EventBus, state *PlanningState, reason string) {
	publish(ctx, eb, eventbus.EventStageDegraded, state, reason)
}

func createInitTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		log.Printf("Starting trip planning (run_id: %s, destination: %s, days: %d, budget: %.2f)",
			state.RunID, state.Request.Destination, state.Request.DurationDays(), state.Request.Budget)
		publish(ctx, eb, eventbus.EventRunStarted, state, state.Request)
		return StateFetchData, nil
	}
}

func createFetchDataTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		publish(ctx, eb, eventbus.EventStageStarted, state, nil)
		if c.Collectors == nil {
			state.AddWarning("data collection skipped: no collectors configured")
			degraded(ctx, eb, state, "no collectors")
			return StateAnalyzeRisks, nil
		}

		signals := c.Collectors.FetchAll(ctx, state.Request, c.Config.BaseCurrency)
		state.Forecast = signals.Forecast
		if signals.Events != nil {
			state.Events = signals.Events
		}
		state.Safety = signals.Safety
		state.ExchangeRate = signals.Exchange
		for _, w := range signals.Warnings {
			state.AddWarning("%s", w)
			c.Metrics.collectorDegraded()
		}
		if len(signals.Warnings) > 0 {
			degraded(ctx, eb, state, strings.Join(signals.Warnings, "; "))
		}

		log.Printf("Data collected (run_id: %s, forecast_days: %d, events: %d, exchange_rate: %.4f)",
			state.RunID, len(state.Forecast.Days), len(state.Events), state.ExchangeRate.RateOrDefault())
		publish(ctx, eb, eventbus.EventStageCompleted, state, nil)
		return StateAnalyzeRisks, nil
	}
}

func createAnalyzeRisksTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		publish(ctx, eb, eventbus.EventStageStarted, state, nil)
		if c.Risk == nil {
			state.AddWarning("risk analysis skipped: no analyzer configured")
			return StateRetrieveKnowledge, nil
		}
		analysis, err := c.Risk.Analyze(ctx, risk.Input{
			Request:      state.Request,
			Forecast:     state.Forecast.Days,
			Events:       state.Events,
			ExchangeRate: state.ExchangeRate.RateOrDefault(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return state.CurrentStep, ctx.Err()
			}
			log.Printf("Risk analysis failed (run_id: %s, error: %v)", state.RunID, err)
			state.AddError("%v", NewRiskAnalysisError(err))
			degraded(ctx, eb, state, err.Error())
			return StateRetrieveKnowledge, nil
		}
		state.RiskAnalysis = &analysis
		publish(ctx, eb, eventbus.EventStageCompleted, state, analysis.QualityScore)
		return StateRetrieveKnowledge, nil
	}
}

// KnowledgeQuery is the retrieval query for a request.
func KnowledgeQuery(req trip.Request, topK int) knowledge.Query {
	return knowledge.Query{
		Text:      strings.TrimSpace(fmt.Sprintf("Travel to %s %s", req.Destination, strings.Join(req.Interests, " "))),
		Location:  req.Destination,
		Interests: req.Interests,
		TopK:      topK,
	}
}

func createRetrieveKnowledgeTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		publish(ctx, eb, eventbus.EventStageStarted, state, nil)
		if c.Retriever == nil {
			state.AddWarning("knowledge retrieval skipped: no knowledge index configured")
			return StateCheckMajorIssues, nil
		}
		snippets, err := c.Retriever.Retrieve(ctx, KnowledgeQuery(state.Request, c.Config.KnowledgeTopK))
		if err != nil {
			if ctx.Err() != nil {
				return state.CurrentStep, ctx.Err()
			}
			log.Printf("Knowledge retrieval failed (run_id: %s, error: %v)", state.RunID, err)
			state.AddError("%v", NewRetrievalError(err))
			state.Knowledge = []trip.KnowledgeSnippet{}
			degraded(ctx, eb, state, err.Error())
			return StateCheckMajorIssues, nil
		}
		if snippets == nil {
			snippets = []trip.KnowledgeSnippet{}
		}
		state.Knowledge = snippets
		publish(ctx, eb, eventbus.EventStageCompleted, state, len(snippets))
		return StateCheckMajorIssues, nil
	}
}

func createCheckMajorIssuesTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		check, err := CheckApproval(state.RiskAnalysis, state.Request.Budget, c.Gate)
		if err != nil {
			return state.CurrentStep, NewApprovalError("approval rules failed", err)
		}
		if state.RiskAnalysis == nil {
			state.AddWarning("approval check used no risk analysis")
		}
		state.RequiresApproval = check.RequiresApproval
		state.ApprovalMessage = check.Message
		state.ApprovalPayload = check.Payload
		state.ApprovalRules = check.Rules
		log.Printf("Major issue check done (run_id: %s, requires_approval: %v, rules: %v)", state.RunID, check.RequiresApproval, check.Rules)
		return StateApprovalDecision, nil
	}
}

func createApprovalTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		check := ApprovalCheck{
			RequiresApproval: state.RequiresApproval,
			Message:          state.ApprovalMessage,
			Payload:          state.ApprovalPayload,
			Rules:            state.ApprovalRules,
		}

		answer := state.ApprovalDecision
		if check.RequiresApproval && answer == "" {
			c.Metrics.approvalRequested()
			var err error
			answer, err = requestApproval(ctx, eb, c, state, check)
			if err != nil {
				return state.CurrentStep, err
			}
		}

		decision := Decide(check, answer)
		state.ApprovalDecision = decision
		publish(ctx, eb, eventbus.EventApprovalResolved, state, decision)
		if decision == DecisionTerminate {
			log.Printf("Run terminated at approval checkpoint (run_id: %s)", state.RunID)
			state.SummaryMessage = fmt.Sprintf("Trip planning for %s stopped at the approval checkpoint.", itinerary.DisplayName(state.Request.Destination))
			return StateTerminated, nil
		}
		return StateGenerateItinerary, nil
	}
}

func requestApproval(ctx context.Context, eb eventbus.EventBus, c Components, state *PlanningState, check ApprovalCheck) (Decision, error) {
	handler := c.Approvals
	if handler == nil {
		handler = AutoApprover{}
	}
	state.ApprovalToken = uuid.New().String()
	publish(ctx, eb, eventbus.EventApprovalRequested, state, ApprovalNotice{
		RunID:   state.RunID,
		Token:   state.ApprovalToken,
		Message: check.Message,
		Rules:   check.Rules,
	})

	waitCtx := ctx
	if c.Config.ApprovalTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.Config.ApprovalTimeout)
		defer cancel()
	}
	answer, err := handler.RequestApproval(waitCtx, ApprovalRequest{Token: state.ApprovalToken, Check: check, State: state})
	if err == nil {
		if _, auto := handler.(AutoApprover); auto {
			publish(ctx, eb, eventbus.EventApprovalAuto, state, answer)
		}
		return answer, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("Approval timed out (run_id: %s, timeout: %s)", state.RunID, c.Config.ApprovalTimeout)
		state.AddWarning("approval timed out after %s", c.Config.ApprovalTimeout)
		return DecisionTerminate, nil
	}
	log.Printf("Approval handler failed (run_id: %s, error: %v)", state.RunID, err)
	state.AddError("%v", NewApprovalError("approval handler failed", err))
	return DecisionTerminate, nil
}

func createGenerateItineraryTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		publish(ctx, eb, eventbus.EventStageStarted, state, nil)
		synth := c.Synthesizer
		if synth == nil {
			synth = itinerary.NewSynthesizer(nil)
		}
		it, err := synth.Generate(ctx, itinerary.Context{
			Request:   state.Request,
			Forecast:  state.Forecast.Days,
			Events:    state.Events,
			Knowledge: state.Knowledge,
			Risk:      state.RiskAnalysis,
		})
		if err != nil {
			if ctx.Err() != nil {
				return state.CurrentStep, ctx.Err()
			}
			state.AddWarning("%v", NewSynthesisError(err))
			c.Metrics.fallbackUsed()
			publish(ctx, eb, eventbus.EventItineraryFallback, state, err.Error())
		}
		if len(it.DailyItineraries) == 0 {
			it = itinerary.Fallback(state.Request)
		}
		state.Itinerary = &it
		publish(ctx, eb, eventbus.EventStageCompleted, state, len(it.DailyItineraries))
		return StateOptimizeItinerary, nil
	}
}

func createOptimizeTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		if state.Itinerary == nil {
			state.AddWarning("optimization skipped: no itinerary")
			return StateFinalize, nil
		}
		ApplyWeatherOptimizations(state.Itinerary, state.Forecast.Days)
		if state.RiskAnalysis != nil {
			ApplyBudgetOptimizations(state.Itinerary, state.RiskAnalysis.BudgetRisk.OverrunRisk, state.Request.Budget)
		}
		return StateFinalize, nil
	}
}

// SummaryMessage is the one-line outcome of a completed run.
func SummaryMessage(state *PlanningState) string {
	quality := "N/A"
	if state.RiskAnalysis != nil {
		quality = fmt.Sprintf("%.1f", state.RiskAnalysis.QualityScore.OverallScore)
	}
	total := 0.0
	if state.Itinerary != nil {
		total = state.Itinerary.Summary.TotalEstimatedCost
	}
	return fmt.Sprintf("Trip plan completed for %s! Quality Score: %s/100, Total Estimated Cost: $%.2f",
		itinerary.DisplayName(state.Request.Destination), quality, total)
}

func createFinalizeTransition(c Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, state *PlanningState) (ProcessState, error) {
		state.SummaryMessage = SummaryMessage(state)
		if c.Results != nil && c.Config.PersistResults {
			if err := c.Results.SavePlan(ctx, state); err != nil {
				log.Printf("Plan persistence failed (run_id: %s, error: %v)", state.RunID, err)
				state.AddWarning("plan not persisted: %v", err)
			}
		}
		log.Printf("Trip planning finished (run_id: %s, summary: %s)", state.RunID, state.SummaryMessage)
		return StateCompleted, nil
	}
}
