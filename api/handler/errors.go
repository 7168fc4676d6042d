package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/use-agent/promoscrape/models"
)

// Error bodies use a fixed "error" string per status class.
const (
	errValidation         = "validation error"
	errSelectorGeneration = "selector generation error"
	errInternal           = "internal server error"
)

// respondError writes err with the status its code maps to.
func respondError(c *gin.Context, err error) {
	se := models.AsScrapeError(err)
	status := mapErrorToStatus(se)

	body := models.ErrorResponse{Message: se.Error(), Code: se.Code}
	switch status {
	case http.StatusBadRequest:
		body.Error = errValidation
	case http.StatusUnprocessableEntity:
		body.Error = errSelectorGeneration
	default:
		body.Error = errInternal
	}
	c.JSON(status, body)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeValidation:
		return http.StatusBadRequest // 400
	case models.ErrCodeSelectorGeneration:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

// validationDetails turns a binding error into one line per failed rule.
// Every line names the rule, e.g. "urls must contain at least 1 item (min)".
func validationDetails(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(ve))
	for _, fe := range ve {
		details = append(details, describeFieldError(fe))
	}
	return details
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (required)", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s) (min)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must contain at most %s items (max)", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q (url)", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}
