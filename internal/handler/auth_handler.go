package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ravi1997/spars/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type requestOTPRequest struct {
	Mobile string `json:"mobile" binding:"required"`
}

type verifyOTPRequest struct {
	Mobile string `json:"mobile" binding:"required"`
	OTP    string `json:"otp" binding:"required"`
}

// RequestOTP sends a one-time passcode to the given mobile number.
// POST /api/v1/auth/request_otp
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "mobile number is required")
		return
	}
	if err := h.auth.RequestOTP(c.Request.Context(), req.Mobile); err != nil {
		if errors.Is(err, service.ErrDelivery) {
			BadRequest(c, "Something went wrong, please try after some time.")
			return
		}
		respondError(c, err)
		return
	}
	SuccessMessage(c, "OTP sent successfully.", nil)
}

// VerifyOTP exchanges a valid passcode for a session token.
// POST /api/v1/auth/verify_otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "mobile number and otp are required")
		return
	}
	result, err := h.auth.VerifyOTP(c.Request.Context(), req.Mobile, req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "OTP verified successfully, login successful.", result)
}
