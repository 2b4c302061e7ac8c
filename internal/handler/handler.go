package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/service"
)

// Handlers aggregates the HTTP layer.
type Handlers struct {
	Auth   *AuthHandler
	Survey *SurveyHandler
	Answer *AnswerHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:   NewAuthHandler(services.Auth),
		Survey: NewSurveyHandler(services.Survey),
		Answer: NewAnswerHandler(services.Answer),
	}
}

// Response is the uniform envelope for every endpoint.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Code: 40000, Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{Code: 40100, Message: message})
}

func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{Code: 40300, Message: message})
}

func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{Code: 40400, Message: message})
}

func InternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Response{Code: 50000, Message: "Internal server error"})
}

// respondError maps service failures onto the error taxonomy. Anything
// not classified is a storage or configuration fault.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrOTPExpired):
		BadRequest(c, "OTP has expired.")
	case errors.Is(err, service.ErrOTPInvalid):
		BadRequest(c, "Invalid OTP or OTP already used.")
	case errors.Is(err, service.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c)
	}
}

// GetUserID returns the authenticated caller's id.
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetRoles returns the authenticated caller's roles.
func GetRoles(c *gin.Context) []string {
	if v, ok := c.Get("roles"); ok {
		if roles, ok := v.([]string); ok {
			return roles
		}
	}
	return nil
}
