package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

const userContextKey = "user"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// respond writes {success:true, ...payload, message}
func respond(c echo.Context, code int, message string, payload echo.Map) error {
	body := echo.Map{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(code, body)
}

// bindAndValidate decodes the request body into req and runs the struct
// validator. Failures come back as *entities.ValidationError.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return entities.NewValidationError("body", "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return ValidationMessage(err)
	}
	return nil
}

// ValidationMessage converts validator errors into a single readable
// validation error built from the first failing field.
func ValidationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return entities.NewValidationError("", "%s", err.Error())
	}

	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return entities.NewValidationError(field, "%s is required", field)
	case "email":
		return entities.NewValidationError(field, "Please provide a valid email")
	case "min":
		if fe.Kind() == reflect.String {
			return entities.NewValidationError(field, "%s must be at least %s characters long", field, fe.Param())
		}
		return entities.NewValidationError(field, "%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return entities.NewValidationError(field, "%s cannot exceed %s characters", field, fe.Param())
		}
		return entities.NewValidationError(field, "%s must be at most %s", field, fe.Param())
	case "oneof":
		return entities.NewValidationError(field, "%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return entities.NewValidationError(field, "%s is invalid", field)
	}
}

// SetUser stores the authenticated user on the request context
func SetUser(c echo.Context, user *entities.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the authenticated user set by the auth middleware
func CurrentUser(c echo.Context) (*entities.User, error) {
	user, ok := c.Get(userContextKey).(*entities.User)
	if !ok || user == nil {
		return nil, entities.ErrUnauthorized
	}
	return user, nil
}

// taskIDParam parses the :id path parameter. Malformed ids are reported as
// missing tasks.
func taskIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, entities.ErrTaskNotFound
	}
	return id, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// StatusFor maps a domain error to its HTTP status and client message.
// Anything unrecognised is an internal error and its detail is withheld.
func StatusFor(err error) (int, string) {
	var verr *entities.ValidationError
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, entities.ErrDuplicateEmail):
		return http.StatusBadRequest, "User already exists with this email"
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized, "Access token required"
	case errors.Is(err, entities.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, entities.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, entities.ErrUserNotFound):
		return http.StatusUnauthorized, "User not found"
	case errors.Is(err, entities.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.As(err, &herr):
		return herr.Code, fmt.Sprint(herr.Message)
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
