package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
)

const traceKey = "trace_id"

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// TraceMiddleware tags each request with a trace ID, reusing X-Request-ID when sent.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(traceKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func respond(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		TraceID: c.GetString(traceKey),
		Data:    data,
	})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString(traceKey),
	})
}

// statusFor maps planner error codes to HTTP statuses.
func statusFor(err error) int {
	var te *tripweaver.TripError
	if !errors.As(err, &te) {
		return http.StatusInternalServerError
	}
	switch te.Code {
	case tripweaver.ErrCodeValidation:
		return http.StatusBadRequest
	case tripweaver.ErrCodeRunNotFound:
		return http.StatusNotFound
	case tripweaver.ErrCodeApproval, tripweaver.ErrCodeCheckpoint, tripweaver.ErrCodeCancelled:
		return http.StatusConflict
	case tripweaver.ErrCodeConfiguration:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func handleError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("Request failed (path: %s, trace_id: %s, error: %v)", c.FullPath(), c.GetString(traceKey), err)
	}
	respondError(c, code, err.Error())
}
