package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/common"
	"gorm.io/gorm"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}

type sendReq struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	CSAT   *int   `json:"csat"`
	NPS    *int   `json:"nps"`
	CES    *int   `json:"ces"`
}

// Send ingests a user message. Classification happens inline; the fallback
// timer is armed before the response goes out. A bad request leaves no
// trace: no message row, no timer.
func (h *Handler) Send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	m, err := h.Svc.Ingest(c.Request.Context(), chat.IngestRequest{
		UserID: req.UserID,
		Text:   req.Text,
		CSAT:   req.CSAT,
		NPS:    req.NPS,
		CES:    req.CES,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyText) {
			common.Fail(c, http.StatusBadRequest, 10002, "text required")
			return
		}
		h.Log.Error("ingest failed", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to store message")
		return
	}

	common.OK(c, gin.H{"status": "ok", "id": m.ID})
}

type adminReplyReq struct {
	MsgID *uint64 `json:"msg_id"`
	Text  string  `json:"text"`
}

func (h *Handler) AdminReply(c *gin.Context) {
	var req adminReplyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.MsgID == nil {
		common.Fail(c, http.StatusBadRequest, 10003, "msg_id or text missing")
		return
	}

	_, err := h.Svc.AdminReply(c.Request.Context(), *req.MsgID, req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyText) {
			common.Fail(c, http.StatusBadRequest, 10003, "msg_id or text missing")
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid msg_id")
			return
		}
		h.Log.Error("admin reply failed", "msg_id", *req.MsgID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to store reply")
		return
	}

	common.OK(c, gin.H{"status": "ok"})
}
