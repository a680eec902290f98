package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/config"
	"github.com/suPer8Hu/support-hub/internal/db"
	"github.com/suPer8Hu/support-hub/internal/logger"
	"github.com/suPer8Hu/support-hub/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// The archive worker drains the reply-event queue and writes one audit row
// per winning reply. It runs next to the server and shares its database.
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required for the archive worker")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect failed", "err", err)
	}
	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		log.Fatal("db migrate failed", "err", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial failed", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel failed", "err", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatal("queue declare failed", "err", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos failed", "err", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("archive worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev rabbitmq.ReplyEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.EventID == "" {
					log.Warn("bad reply event", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := archiveReply(ctx, repo, ev); err != nil {
					log.Error("archive failed", "worker", workerID, "event_id", ev.EventID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", "worker", workerID, "event_id", ev.EventID, "err", err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("archive worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func archiveReply(ctx context.Context, repo *chat.Repo, ev rabbitmq.ReplyEvent) error {
	archivedAt := ev.WrittenAt
	if archivedAt.IsZero() {
		archivedAt = time.Now()
	}
	return repo.InsertReplyArchive(ctx, &chat.ReplyArchive{
		ID:         ev.EventID,
		MessageID:  ev.MessageID,
		UserID:     ev.UserID,
		Source:     ev.Source,
		Reply:      ev.Reply,
		ArchivedAt: archivedAt,
	})
}
