package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/config"
	"github.com/suPer8Hu/support-hub/internal/logger"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T, grace time.Duration) (*gin.Engine, *chat.Repo, *chat.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := chat.NewRepo(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := chat.NewService(repo, nil, nil, grace, nil, logger.NewNop())
	cfg := config.Config{FeedPollInterval: 20 * time.Millisecond}

	return NewRouter(cfg, logger.NewNop(), svc, repo, nil), repo, svc
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSendRequiresText(t *testing.T) {
	r, repo, _ := newTestRouter(t, time.Hour)

	for _, body := range []string{`{"user_id":"u1"}`, `{"user_id":"u1","text":"  "}`} {
		w := postJSON(r, "/send", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d (%s)", body, w.Code, w.Body.String())
		}
	}

	msgs, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("bad request must have no side effects, found %d rows", len(msgs))
	}
}

func TestSendCreatesMessage(t *testing.T) {
	r, repo, _ := newTestRouter(t, time.Hour)

	w := postJSON(r, "/send", `{"user_id":"u7","text":"my order is late","csat":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	msgs, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one stored message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.UserID != "u7" || m.Text != "my order is late" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.CSAT == nil || *m.CSAT != 4 {
		t.Fatalf("expected csat 4, got %v", m.CSAT)
	}
	if m.ReplySource != chat.ReplySourceNone {
		t.Fatalf("fresh message must be unreplied, got %q", m.ReplySource)
	}
}

func TestAdminReplyValidation(t *testing.T) {
	r, repo, svc := newTestRouter(t, time.Hour)

	m, err := svc.Ingest(context.Background(), chat.IngestRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	cases := []string{
		`{"text":"hello"}`,                                  // msg_id missing
		fmt.Sprintf(`{"msg_id":%d,"text":"  "}`, m.ID),      // blank text
		fmt.Sprintf(`{"msg_id":%d,"text":"late"}`, m.ID+50), // out of range
	}
	for _, body := range cases {
		w := postJSON(r, "/admin_reply", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d (%s)", body, w.Code, w.Body.String())
		}
	}

	got, err := repo.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reply != "" || got.ReplySource != chat.ReplySourceNone {
		t.Fatalf("rejected replies must not mutate the store: %+v", got)
	}
}

func TestAdminReplyHappyPath(t *testing.T) {
	r, repo, svc := newTestRouter(t, time.Hour)

	m, err := svc.Ingest(context.Background(), chat.IngestRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	w := postJSON(r, "/admin_reply", fmt.Sprintf(`{"msg_id":%d,"text":"hello back"}`, m.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	got, _ := repo.Get(context.Background(), m.ID)
	if got.Reply != "hello back" || got.ReplySource != chat.ReplySourceAdmin {
		t.Fatalf("unexpected reply state: %+v", got)
	}
}

// serveStream runs an SSE endpoint for roughly window and returns what it
// wrote.
func serveStream(r http.Handler, path string, window time.Duration) string {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(window)
	cancel()
	<-done

	return w.Body.String()
}

func TestAdminStreamEmitsMessageWithMetrics(t *testing.T) {
	r, _, svc := newTestRouter(t, time.Hour)

	if _, err := svc.Ingest(context.Background(), chat.IngestRequest{UserID: "u1", Text: "anyone?"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	body := serveStream(r, "/admin_stream", 120*time.Millisecond)
	if !strings.Contains(body, "event: message") {
		t.Fatalf("expected a message event, got %q", body)
	}
	if !strings.Contains(body, `"msg"`) || !strings.Contains(body, `"metrics"`) {
		t.Fatalf("admin event must carry msg and metrics, got %q", body)
	}
	if !strings.Contains(body, `"sentiment_counts"`) {
		t.Fatalf("expected a metrics snapshot in the payload, got %q", body)
	}
}

func TestUserStreamDeliversOnlyRepliedMessages(t *testing.T) {
	r, _, svc := newTestRouter(t, time.Hour)

	m, err := svc.Ingest(context.Background(), chat.IngestRequest{UserID: "u9", Text: "ping"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), chat.IngestRequest{UserID: "u9", Text: "still unanswered"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.AdminReply(context.Background(), m.ID, "pong"); err != nil {
		t.Fatalf("admin reply: %v", err)
	}

	body := serveStream(r, "/user_stream/u9", 120*time.Millisecond)
	if !strings.Contains(body, `"pong"`) {
		t.Fatalf("expected the replied message, got %q", body)
	}
	if strings.Contains(body, "still unanswered") {
		t.Fatalf("unreplied message must not reach the user feed, got %q", body)
	}
}
