package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/support-hub/internal/ai"
	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/common"
	"github.com/suPer8Hu/support-hub/internal/config"
	"github.com/suPer8Hu/support-hub/internal/db"
	"github.com/suPer8Hu/support-hub/internal/httpapi"
	"github.com/suPer8Hu/support-hub/internal/logger"
	"github.com/suPer8Hu/support-hub/internal/store/rabbitmq"
	"github.com/suPer8Hu/support-hub/internal/store/redisstore"
)

// fanoutNotifier pushes store changes out to the optional side channels:
// reply events onto the archive queue, nudges onto the redis feed channel.
// Every hook is best-effort; a dead broker never blocks the write path.
type fanoutNotifier struct {
	log    *logger.Logger
	rabbit *rabbitmq.Publisher
	redis  *redisstore.Store
}

func (n *fanoutNotifier) MessageIngested(ctx context.Context, m *chat.Message) {
	n.nudge(ctx)
}

func (n *fanoutNotifier) ReplyWritten(ctx context.Context, m *chat.Message) {
	if n.rabbit != nil {
		eventID, err := common.NewULID()
		if err == nil {
			err = n.rabbit.PublishReply(ctx, rabbitmq.ReplyEvent{
				EventID:   eventID,
				MessageID: m.ID,
				UserID:    m.UserID,
				Source:    m.ReplySource,
				Reply:     m.Reply,
				WrittenAt: time.Now(),
			})
		}
		if err != nil {
			n.log.Warn("publish reply event failed", "msg_id", m.ID, "err", err)
		}
	}
	n.nudge(ctx)
}

func (n *fanoutNotifier) nudge(ctx context.Context) {
	if n.redis == nil {
		return
	}
	if err := n.redis.PublishNudge(ctx); err != nil {
		n.log.Warn("feed nudge failed", "err", err)
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect failed", "err", err)
	}

	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		log.Fatal("db migrate failed", "err", err)
	}

	var classifier ai.Classifier
	if cfg.ClassifierBaseURL != "" {
		classifier = ai.NewHTTPClassifier(cfg.ClassifierBaseURL)
	} else {
		log.Warn("no classifier configured, every message gets the neutral label")
	}

	// reply providers, routed by name
	reg := ai.NewRegistry()
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.ReplyGenerator, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterGenerator(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	var generator ai.ReplyGenerator
	if cfg.OpenRouterAPIKey != "" {
		generator, err = reg.Get(context.Background(), cfg.AIProvider, "")
		if err != nil {
			log.Fatal("reply provider init failed", "provider", cfg.AIProvider, "err", err)
		}
	} else {
		log.Warn("no reply provider configured, fallbacks use the fixed apology text")
	}

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rds.Ping(context.Background()); err != nil {
			log.Warn("redis unreachable, feeds fall back to polling alone", "err", err)
			_ = rds.Close()
			rds = nil
		}
	}

	var rabbit *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		rabbit, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Warn("rabbit unreachable, reply events are not archived", "err", err)
			rabbit = nil
		} else {
			defer rabbit.Close()
		}
	}

	notifier := &fanoutNotifier{log: log, rabbit: rabbit, redis: rds}
	svc := chat.NewService(repo, classifier, generator, cfg.GracePeriod, notifier, log)

	router := httpapi.NewRouter(cfg, log, svc, repo, rds)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", "addr", cfg.HTTPAddr, "grace_period", cfg.GracePeriod.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
