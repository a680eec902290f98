package handlers

import (
	"time"

	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/config"
	"github.com/suPer8Hu/support-hub/internal/logger"
	"github.com/suPer8Hu/support-hub/internal/store/redisstore"
)

type Handler struct {
	Cfg   config.Config
	Log   *logger.Logger
	Svc   *chat.Service
	Repo  *chat.Repo
	Redis *redisstore.Store // nil when feeds run on polling alone

	pollInterval time.Duration
}

func NewHandler(cfg config.Config, log *logger.Logger, svc *chat.Service, repo *chat.Repo, rds *redisstore.Store) *Handler {
	poll := cfg.FeedPollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Handler{
		Cfg:          cfg,
		Log:          log,
		Svc:          svc,
		Repo:         repo,
		Redis:        rds,
		pollInterval: poll,
	}
}
