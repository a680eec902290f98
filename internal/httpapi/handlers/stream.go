package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/support-hub/internal/chat"
)

// UserStream is the per-user SSE feed: one "message" event per replied
// message belonging to this user, each delivered at most once for the
// lifetime of the store.
func (h *Handler) UserStream(c *gin.Context) {
	userID := c.Param("user_id")
	h.serveFeed(c, func(emit func(event string, payload any) bool) {
		batch, err := h.Repo.ClaimPendingForUser(c.Request.Context(), userID)
		if err != nil {
			h.Log.Error("user feed: claim failed", "user_id", userID, "err", err)
			return
		}
		for _, m := range batch {
			emit("message", m)
		}
	})
}

// AdminStream is the shared admin SSE feed: every message exactly once,
// replied or not, each event paired with a metrics snapshot computed for
// the batch.
func (h *Handler) AdminStream(c *gin.Context) {
	h.serveFeed(c, func(emit func(event string, payload any) bool) {
		ctx := c.Request.Context()
		batch, err := h.Repo.ClaimPendingForAdmin(ctx)
		if err != nil {
			h.Log.Error("admin feed: claim failed", "err", err)
			return
		}
		if len(batch) == 0 {
			return
		}
		all, err := h.Repo.All(ctx)
		if err != nil {
			h.Log.Error("admin feed: snapshot failed", "err", err)
			all = batch
		}
		snap := chat.ComputeMetrics(all)
		for _, m := range batch {
			emit("message", gin.H{"msg": m, "metrics": snap})
		}
	})
}

// serveFeed runs the long-lived pull loop: drain once immediately, then on
// every poll tick and on every redis nudge, until the connection closes.
// A failed emission is logged and skipped; the loop never dies over one
// message.
func (h *Handler) serveFeed(c *gin.Context, drain func(emit func(event string, payload any) bool)) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	ctx := c.Request.Context()

	emit := func(event string, payload any) bool {
		b, err := json.Marshal(payload)
		if err != nil {
			h.Log.Warn("feed: marshal failed, skipping event", "err", err)
			return false
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
		return true
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	// heartbeat keeps idle connections alive
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	// nil channel when redis is not configured; select just never fires
	var nudge <-chan struct{}
	if h.Redis != nil {
		var cancel func()
		nudge, cancel = h.Redis.SubscribeNudges(ctx)
		defer cancel()
	}

	drain(emit)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drain(emit)
		case _, open := <-nudge:
			if !open {
				nudge = nil
				continue
			}
			drain(emit)
		case <-heartbeat.C:
			emit("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})
		}
	}
}
