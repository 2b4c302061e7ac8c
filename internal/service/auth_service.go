package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/config"
	"github.com/ravi1997/spars/internal/middleware"
	"github.com/ravi1997/spars/internal/model/entity"
	"github.com/ravi1997/spars/internal/repository"
)

const otpKeyPrefix = "otp:"

// otpRetention keeps consumed-or-stale codes around past their validity
// window so an expired code can be reported as expired rather than unknown.
const otpRetention = 30 * time.Minute

// AuthService issues one-time passcodes over SMS and exchanges a verified
// passcode for a signed session token. Codes live in redis, keyed by
// mobile number, one live code per number.
type AuthService struct {
	users  *repository.UserRepository
	rdb    *redis.Client
	sms    SMSSender
	cfg    *config.Config
	logger *zap.Logger
}

// SMSSender delivers one message to one mobile number.
type SMSSender interface {
	Send(ctx context.Context, mobile, message string) error
}

// LoginResult is returned on a successful OTP verification.
type LoginResult struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

func NewAuthService(users *repository.UserRepository, rdb *redis.Client, sender SMSSender, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, rdb: rdb, sms: sender, cfg: cfg, logger: logger}
}

// RequestOTP generates a fresh six digit code, stores it with its issue
// time, and delivers it over SMS. A new request replaces any live code for
// the same number.
func (s *AuthService) RequestOTP(ctx context.Context, mobile string) error {
	if strings.TrimSpace(mobile) == "" {
		return fmt.Errorf("%w: mobile number is required", ErrValidation)
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	value := fmt.Sprintf("%s:%d", code, time.Now().Unix())
	ttl := s.cfg.OTP.Expire + otpRetention
	if err := s.rdb.Set(ctx, otpKeyPrefix+mobile, value, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	message := fmt.Sprintf("Your OTP for login is %s. It is valid for %d minutes.",
		code, int(s.cfg.OTP.Expire.Minutes()))
	if err := s.sms.Send(ctx, mobile, message); err != nil {
		s.logger.Error("otp delivery failed", zap.String("mobile", mobile), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// VerifyOTP checks the submitted code, consumes it on success, finds or
// creates the user for the mobile number, and returns a signed token.
func (s *AuthService) VerifyOTP(ctx context.Context, mobile, code string) (*LoginResult, error) {
	if strings.TrimSpace(mobile) == "" || strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: mobile number and otp are required", ErrValidation)
	}

	key := otpKeyPrefix + mobile
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOTPInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}

	stored, issuedAt, ok := parseOTPValue(raw)
	if !ok {
		s.rdb.Del(ctx, key)
		return nil, ErrOTPInvalid
	}
	if time.Since(issuedAt) > s.cfg.OTP.Expire {
		s.rdb.Del(ctx, key)
		return nil, ErrOTPExpired
	}
	if stored != code {
		return nil, ErrOTPInvalid
	}
	// One shot: a verified code cannot be replayed.
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}

	user, err := s.findOrCreateUser(ctx, mobile)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, mobile string) (*entity.User, error) {
	user, err := s.users.FindByMobile(ctx, mobile)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user = &entity.User{
		ID:     uuid.New().String(),
		Mobile: mobile,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.users.AttachRole(ctx, user, entity.RoleNormal); err != nil {
		return nil, fmt.Errorf("attach role: %w", err)
	}
	s.logger.Info("registered new user", zap.String("user_id", user.ID), zap.String("mobile", mobile))
	return s.users.FindByMobile(ctx, mobile)
}

func (s *AuthService) issueToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := middleware.JWTClaims{
		UserID: user.ID,
		Mobile: user.Mobile,
		Roles:  user.RoleNames(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWT.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.TokenExpire)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func parseOTPValue(raw string) (code string, issuedAt time.Time, ok bool) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return raw[:idx], time.Unix(unix, 0), true
}
