package tripweaver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/checkpoint"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/gate"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/risk"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Decision is the outcome of the approval checkpoint.
type Decision string

const (
	DecisionProceed   Decision = "proceed"
	DecisionTerminate Decision = "terminate"
)

// ParseDecision accepts proceed/approve/yes and terminate/reject/no.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proceed", "approve", "approved", "yes":
		return DecisionProceed, nil
	case "terminate", "reject", "rejected", "no":
		return DecisionTerminate, nil
	}
	return "", fmt.Errorf("unknown approval decision %q", s)
}

// ApprovalFooter is appended to the message of a run that needs approval.
const ApprovalFooter = "\n\nWould you like to:\n1. Proceed with adjustments\n2. Change dates or destination\n3. Adjust budget\n"

// ApprovalCheck is the outcome of the major-issue check.
type ApprovalCheck struct {
	RequiresApproval bool
	Message          string
	Payload          trip.ApprovalPayload
	Rules            []string
}

// GateFacts extracts the rule parameters from a risk analysis.
func GateFacts(a *trip.RiskAnalysis) gate.Facts {
	return gate.Facts{
		BudgetRisk:        string(a.BudgetRisk.OverrunRisk),
		WeatherRisk:       string(a.WeatherRisk.RiskLevel),
		CrowdingRisk:      string(a.CrowdingRisk.RiskLevel),
		QualityScore:      a.QualityScore.OverallScore,
		OverrunPercentage: a.BudgetRisk.OverrunPercentage,
		RainPercentage:    a.WeatherRisk.RainPercentage,
	}
}

// CheckApproval decides from the risk analysis alone whether the run needs
// approval and composes the alert message. A nil analysis never needs
// approval. A nil evaluator uses the built-in rules.
func CheckApproval(a *trip.RiskAnalysis, budget float64, evaluator *gate.Evaluator) (ApprovalCheck, error) {
	var check ApprovalCheck
	if a == nil {
		return check, nil
	}
	if evaluator == nil {
		var err error
		if evaluator, err = gate.New(gate.DefaultRules(false)); err != nil {
			return check, err
		}
	}
	fired, err := evaluator.Evaluate(GateFacts(a))
	if err != nil {
		return check, err
	}

	var msg strings.Builder
	b := a.BudgetRisk
	if b.OverrunRisk == trip.RiskHigh {
		fmt.Fprintf(&msg, "Budget Alert: Estimated costs are %d%% over your budget. Estimated: $%.2f, Budget: $%.2f. ",
			b.OverrunPercentage, b.EstimatedCost, budget)
		check.Payload.BudgetOverrun = &trip.BudgetOverrun{
			Estimated:         b.EstimatedCost,
			Budget:            budget,
			OverrunPercentage: b.OverrunPercentage,
		}
	}
	w := a.WeatherRisk
	if w.RiskLevel == trip.RiskHigh {
		fmt.Fprintf(&msg, "Weather Alert: %d out of %d days expected to have rain (>60%% chance). ", w.RainyDays, w.TotalDays)
		check.Payload.WeatherRisk = &trip.WeatherAlert{RainyDays: w.RainyDays, TotalDays: w.TotalDays}
	}
	c := a.CrowdingRisk
	if c.RiskLevel == trip.RiskHigh {
		fmt.Fprintf(&msg, "Crowding Alert: Major events or holidays will cause high crowding. Events: %s. ",
			strings.Join(risk.EventNames(c.MajorEvents, 2), ", "))
		check.Payload.Crowding = &trip.CrowdingAlert{Events: c.MajorEvents}
	}
	q := a.QualityScore
	if q.OverallScore < 50 {
		fmt.Fprintf(&msg, "Quality Alert: Trip quality score is low (%.1f/100). ", q.OverallScore)
		quality := q
		check.Payload.LowQuality = &quality
	}

	check.Rules = fired
	check.RequiresApproval = len(fired) > 0
	if check.RequiresApproval {
		msg.WriteString(ApprovalFooter)
	}
	check.Message = msg.String()
	return check, nil
}

// Decide maps a check and the reviewer's answer to the branch taken. A run
// without issues proceeds; a run with issues proceeds only on an explicit
// proceed answer.
func Decide(check ApprovalCheck, answer Decision) Decision {
	if !check.RequiresApproval {
		return DecisionProceed
	}
	if answer == DecisionProceed {
		return DecisionProceed
	}
	return DecisionTerminate
}

// ApprovalRequest is handed to an ApprovalHandler.
type ApprovalRequest struct {
	Token string
	Check ApprovalCheck
	State *PlanningState
}

// ApprovalNotice is the payload of approval_requested events.
type ApprovalNotice struct {
	RunID   string   `json:"run_id"`
	Token   string   `json:"token"`
	Message string   `json:"message"`
	Rules   []string `json:"rules,omitempty"`
}

// ApprovalHandler obtains a decision for a run that needs approval.
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (Decision, error)
}

// AutoApprover approves immediately. It stands in for a reviewer when no
// interactive channel exists.
type AutoApprover struct{}

func (AutoApprover) RequestApproval(ctx context.Context, req ApprovalRequest) (Decision, error) {
	log.Printf("Approval required, auto-approving (run_id: %s, rules: %v)", req.State.RunID, req.Check.Rules)
	return DecisionProceed, nil
}

// PendingApproval describes a run waiting at the checkpoint.
type PendingApproval struct {
	Token       string    `json:"token"`
	RunID       string    `json:"run_id"`
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	RequestedAt time.Time `json:"requested_at"`
}

type pendingApproval struct {
	info     PendingApproval
	decision chan Decision
}

// TokenApprover suspends a run until Resolve is called with its token.
// With a store, the suspended state is checkpointed so the run can be
// resumed by a later process.
type TokenApprover struct {
	store   CheckpointStore
	mutex   sync.Mutex
	pending map[string]*pendingApproval
}

// NewTokenApprover creates a TokenApprover. store may be nil.
func NewTokenApprover(store CheckpointStore) *TokenApprover {
	return &TokenApprover{store: store, pending: make(map[string]*pendingApproval)}
}

func (t *TokenApprover) RequestApproval(ctx context.Context, req ApprovalRequest) (Decision, error) {
	p := &pendingApproval{
		info: PendingApproval{
			Token:       req.Token,
			RunID:       req.State.RunID,
			Destination: req.State.Request.Destination,
			Message:     req.Check.Message,
			RequestedAt: time.Now().UTC(),
		},
		decision: make(chan Decision, 1),
	}
	if t.store != nil {
		if err := t.checkpoint(ctx, req); err != nil {
			return "", NewCheckpointError("failed to checkpoint run", err)
		}
	}

	t.mutex.Lock()
	t.pending[req.Token] = p
	t.mutex.Unlock()
	defer func() {
		t.mutex.Lock()
		delete(t.pending, req.Token)
		t.mutex.Unlock()
	}()

	log.Printf("Run suspended for approval (run_id: %s, token: %s)", req.State.RunID, req.Token)
	select {
	case d := <-p.decision:
		if t.store != nil {
			if err := t.store.Delete(context.WithoutCancel(ctx), req.State.RunID); err != nil {
				log.Printf("Checkpoint cleanup failed (run_id: %s, error: %v)", req.State.RunID, err)
			}
		}
		return d, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *TokenApprover) checkpoint(ctx context.Context, req ApprovalRequest) error {
	data, err := json.Marshal(req.State)
	if err != nil {
		return err
	}
	return t.store.Save(ctx, checkpoint.Record{
		RunID: req.State.RunID,
		Token: req.Token,
		Step:  string(StateApprovalDecision),
		State: data,
	})
}

// Resolve delivers a decision to the run waiting on token.
func (t *TokenApprover) Resolve(token string, decision Decision) error {
	t.mutex.Lock()
	p, ok := t.pending[token]
	if ok {
		delete(t.pending, token)
	}
	t.mutex.Unlock()
	if !ok {
		return NewApprovalError(fmt.Sprintf("no run is waiting on token '%s'", token), nil)
	}
	p.decision <- decision
	return nil
}

// Pending lists the runs currently waiting, oldest first.
func (t *TokenApprover) Pending() []PendingApproval {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	out := make([]PendingApproval, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, p.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}
