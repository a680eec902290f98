package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/support-hub/internal/ai"
	"github.com/suPer8Hu/support-hub/internal/logger"
)

var ErrEmptyText = errors.New("text required")

// Notifier fans out store changes to interested parties (queue publisher,
// feed nudges). Implementations log their own failures; nothing here is
// allowed to fail the write path.
type Notifier interface {
	MessageIngested(ctx context.Context, m *Message)
	ReplyWritten(ctx context.Context, m *Message)
}

type NopNotifier struct{}

func (NopNotifier) MessageIngested(context.Context, *Message) {}
func (NopNotifier) ReplyWritten(context.Context, *Message)    {}

// Service coordinates the reply race: per message, a grace timer arms an
// automated fallback reply that an admin reply preempts. The store's
// compare-and-set is the correctness backstop; timer cancellation is only
// an optimization.
type Service struct {
	repo       *Repo
	classifier ai.Classifier
	generator  ai.ReplyGenerator
	grace      time.Duration
	notifier   Notifier
	log        *logger.Logger

	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewService wires the coordinator. classifier and generator may be nil;
// both degrade to fixed outputs. grace <= 0 selects the 60s default.
func NewService(repo *Repo, classifier ai.Classifier, generator ai.ReplyGenerator, grace time.Duration, notifier Notifier, log *logger.Logger) *Service {
	if grace <= 0 {
		grace = 60 * time.Second
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		generator:  generator,
		grace:      grace,
		notifier:   notifier,
		log:        log,
		timers:     make(map[uint64]*time.Timer),
	}
}

type IngestRequest struct {
	UserID string
	Text   string
	CSAT   *int
	NPS    *int
	CES    *int
}

// Ingest classifies and stores a new user message and arms its fallback
// timer. A blank text is rejected before any side effect.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	m := &Message{
		UserID:      req.UserID,
		Text:        req.Text,
		CSAT:        req.CSAT,
		NPS:         req.NPS,
		CES:         req.CES,
		AI:          s.classify(ctx, req.Text),
		ReplySource: ReplySourceNone,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.armFallback(m.ID)
	s.notifier.MessageIngested(ctx, m)
	return m, nil
}

// AdminReply writes the human reply. It always wins: an earlier bot reply is
// overwritten, a pending fallback timer is disarmed. Returns
// gorm.ErrRecordNotFound for an unknown id.
func (s *Service) AdminReply(ctx context.Context, id uint64, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if _, err := s.repo.SetReply(ctx, id, text, ReplySourceAdmin); err != nil {
		return nil, err
	}
	s.disarmFallback(id)

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.ReplyWritten(ctx, m)
	return m, nil
}

func (s *Service) classify(ctx context.Context, text string) AIResult {
	emotion := ai.NeutralEmotion
	if s.classifier != nil {
		e, err := s.classifier.Classify(ctx, text)
		if err != nil {
			s.log.Warn("classifier failed, using neutral", "err", err)
		} else if e != "" {
			emotion = e
		}
	}
	return AIResult{Emotion: emotion, Sentiment: ai.SentimentFor(emotion)}
}

func (s *Service) armFallback(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[id] = time.AfterFunc(s.grace, func() { s.fireFallback(id) })
}

func (s *Service) disarmFallback(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// fireFallback runs once per message, grace after ingestion. The generator
// call happens outside any lock and only after the cheap already-replied
// check; a generator failure degrades to the fixed fallback text.
func (s *Service) fireFallback(id uint64) {
	s.disarmFallback(id)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Error("fallback: load message failed", "msg_id", id, "err", err)
		return
	}
	if m.Reply != "" {
		// admin got there first
		return
	}

	reply := FallbackReply
	if s.generator != nil {
		out, err := s.generator.Generate(ctx, m.Text, m.AI.Emotion)
		if err != nil {
			s.log.Warn("reply generator failed, using fallback text", "msg_id", id, "err", err)
		} else if strings.TrimSpace(out) != "" {
			reply = out
		}
	}

	won, err := s.repo.SetReply(ctx, id, reply, ReplySourceBot)
	if err != nil {
		s.log.Error("fallback: set reply failed", "msg_id", id, "err", err)
		return
	}
	if !won {
		// lost the compare-and-set to the admin, expected
		return
	}

	m.Reply = reply
	m.ReplySource = ReplySourceBot
	s.notifier.ReplyWritten(ctx, m)
}
