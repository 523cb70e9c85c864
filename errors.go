package tripweaver

import (
	"errors"
	"fmt"
)

// Error codes for specific failure types
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeCollector     = "COLLECTOR_ERROR"
	ErrCodeRiskAnalysis  = "RISK_ANALYSIS_ERROR"
	ErrCodeRetrieval     = "RETRIEVAL_ERROR"
	ErrCodeSynthesis     = "SYNTHESIS_ERROR"
	ErrCodeApproval      = "APPROVAL_ERROR"
	ErrCodeCheckpoint    = "CHECKPOINT_ERROR"
	ErrCodeRunNotFound   = "RUN_NOT_FOUND"
	ErrCodeCancelled     = "EXECUTION_CANCELLED"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// TripError is the error type returned by the planner.
type TripError struct {
	Code    string // machine-readable, one of the ErrCode constants
	Message string
	Stage   string // stage where the error occurred
	Cause   error
}

func (e *TripError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

func (e *TripError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TripError.
func NewError(code, stage, message string, cause error) *TripError {
	return &TripError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err is a TripError with the given code.
func HasCode(err error, code string) bool {
	var te *TripError
	return errors.As(err, &te) && te.Code == code
}

func NewValidationError(message string, cause error) *TripError {
	return NewError(ErrCodeValidation, string(StateInit), message, cause)
}

func NewCollectorError(cause error) *TripError {
	return NewError(ErrCodeCollector, string(StateFetchData), "data collection failed", cause)
}

func NewRiskAnalysisError(cause error) *TripError {
	return NewError(ErrCodeRiskAnalysis, string(StateAnalyzeRisks), "risk analysis failed", cause)
}

func NewRetrievalError(cause error) *TripError {
	return NewError(ErrCodeRetrieval, string(StateRetrieveKnowledge), "knowledge retrieval failed", cause)
}

func NewSynthesisError(cause error) *TripError {
	return NewError(ErrCodeSynthesis, string(StateGenerateItinerary), "itinerary generation failed", cause)
}

func NewApprovalError(message string, cause error) *TripError {
	return NewError(ErrCodeApproval, string(StateApprovalDecision), message, cause)
}

func NewCheckpointError(message string, cause error) *TripError {
	return NewError(ErrCodeCheckpoint, string(StateApprovalDecision), message, cause)
}

func NewRunNotFoundError(runID string) *TripError {
	return NewError(ErrCodeRunNotFound, "registry", fmt.Sprintf("run '%s' not found", runID), nil)
}

func NewCancelledError(stage string, cause error) *TripError {
	msg := "execution cancelled"
	if cause != nil && !errors.Is(cause, errCancelledByUser) && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewConfigurationError(message string, cause error) *TripError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewInternalError(stage, message string, cause error) *TripError {
	return NewError(ErrCodeInternal, stage, message, cause)
}

// Failure is the result envelope of a run that failed fatally.
type Failure struct {
	Error       string       `json:"error"`
	CurrentStep ProcessState `json:"current_step"`
}

// NewFailure wraps err in the failed-run envelope.
func NewFailure(err error) Failure {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Failure{Error: msg, CurrentStep: StateFailed}
}
