package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/config"
	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/service"
	"github.com/ravi1997/spars/internal/testutil"
)

type stubSender struct {
	message string
}

func (s *stubSender) Send(_ context.Context, _, message string) error {
	s.message = message
	return nil
}

func setupAuthHandlerTest(t *testing.T) (*gin.Engine, *stubSender) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		OTP: config.OTPConfig{Expire: 5 * time.Minute},
		JWT: config.JWTConfig{
			Secret:      testutil.JWTSecret,
			TokenExpire: time.Hour,
			Issuer:      "spars",
		},
	}

	repos := repository.NewRepositories(db)
	sender := &stubSender{}
	auth := service.NewAuthService(repos.User, rdb, sender, cfg, zap.NewNop())
	h := NewAuthHandler(auth)

	router := testutil.SetupRouter()
	api := router.Group("/api/v1")
	api.POST("/auth/request_otp", h.RequestOTP)
	api.POST("/auth/verify_otp", h.VerifyOTP)
	return router, sender
}

func TestOTPLoginFlow(t *testing.T) {
	router, sender := setupAuthHandlerTest(t)
	mobile := "9899378106"

	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/request_otp",
		map[string]string{"mobile": mobile}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("request_otp: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "OTP sent successfully." {
		t.Fatalf("request_otp message: got %v", msg)
	}

	code := regexp.MustCompile(`\d{6}`).FindString(sender.message)
	if code == "" {
		t.Fatalf("no code delivered in %q", sender.message)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	w = testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/verify_otp",
		map[string]string{"mobile": mobile, "otp": wrong}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong otp: expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Invalid OTP or OTP already used." {
		t.Fatalf("wrong otp message: got %v", msg)
	}

	w = testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/verify_otp",
		map[string]string{"mobile": mobile, "otp": code}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("verify_otp: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "OTP verified successfully, login successful." {
		t.Fatalf("verify_otp message: got %v", resp["message"])
	}
	data := resp["data"].(map[string]interface{})
	if data["token"] == "" || data["token"] == nil {
		t.Fatal("expected a token in the login response")
	}
	user := data["user"].(map[string]interface{})
	if user["mobile"] != mobile {
		t.Fatalf("expected user mobile %s, got %v", mobile, user["mobile"])
	}
}

func TestRequestOTPValidation(t *testing.T) {
	router, _ := setupAuthHandlerTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/request_otp",
		map[string]string{}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing mobile: expected 400, got %d", w.Code)
	}
}
