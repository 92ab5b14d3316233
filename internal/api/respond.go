package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simmer-app/backend/internal/apperror"
)

// errorBody is the error response envelope: a machine-readable code, a
// human-readable message and, for validation failures, a per-field map.
type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func respondError(c *gin.Context, err error) {
	if ae, ok := apperror.As(err); ok {
		c.JSON(ae.HTTPStatus(), gin.H{"error": errorBody{
			Code:    ae.Code(),
			Message: ae.Message,
			Details: ae.Details,
		}})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{
		Code:    "internal",
		Message: "internal server error",
	}})
}

func respondValidation(c *gin.Context, details map[string]string) {
	respondError(c, apperror.Validation(details))
}
