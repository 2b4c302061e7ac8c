package service

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/config"
	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/sms"
	"github.com/ravi1997/spars/internal/storage"
)

// Services aggregates the business layer.
type Services struct {
	Auth   *AuthService
	Survey *SurveyService
	Answer *AnswerService
}

func NewServices(repos *repository.Repositories, rdb *redis.Client, store *storage.ObjectStore, smsClient *sms.Client, cfg *config.Config, logger *zap.Logger) *Services {
	return &Services{
		Auth:   NewAuthService(repos.User, rdb, smsClient, cfg, logger),
		Survey: NewSurveyService(repos.Survey, logger),
		Answer: NewAnswerService(repos.Answer, repos.Survey, store, logger),
	}
}
