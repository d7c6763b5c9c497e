package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leaf-diagnosis-server/internal/platform/errors"
)

// DiagnosisIDHeader carries the id a diagnosis was recorded under.
const DiagnosisIDHeader = "X-Diagnosis-ID"

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorResponse{Error: message})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindMissingInput, errors.KindInvalidImage:
		return http.StatusBadRequest
	case errors.KindInference:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondFailure writes err with its mapped status. Messages of untyped errors are not exposed.
func RespondFailure(c *gin.Context, err error) {
	status := StatusFor(err)
	message := errors.Message(err)
	if errors.KindOf(err) == errors.KindUnknown {
		message = "Internal server error"
	}
	_ = c.Error(err)
	RespondError(c, status, message)
}
