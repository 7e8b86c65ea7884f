package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careplus/appointment-agent/internal/conversation"
	"github.com/careplus/appointment-agent/internal/observability/metrics"
	"github.com/careplus/appointment-agent/pkg/logging"
)

// ChatHandler exposes the dialogue controller over HTTP.
type ChatHandler struct {
	controller *conversation.Controller
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
}

func NewChatHandler(controller *conversation.Controller, m *metrics.ChatMetrics, logger *logging.Logger) *ChatHandler {
	if controller == nil {
		panic("handlers: conversation controller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{controller: controller, metrics: m, logger: logger}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string   `json:"conversation_id"`
	Reply          string   `json:"reply"`
	State          string   `json:"state"`
	BookingID      string   `json:"booking_id,omitempty"`
	Slots          []string `json:"slots,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// HandleMessage processes one patient chat message. A missing conversation
// ID starts a new conversation.
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	start := time.Now()
	reply, err := h.controller.Process(r.Context(), conversationID, req.Message)
	if err != nil {
		h.logger.Error("processing chat message failed",
			"conversation_id", conversationID,
			"error", err.Error(),
		)
		h.metrics.ObserveMessage("unknown", "error")
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	h.metrics.ObserveMessage(string(reply.State), "ok")
	h.metrics.ObserveReplyLatency(string(reply.State), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: conversationID,
		Reply:          reply.Text,
		State:          string(reply.State),
		BookingID:      reply.BookingID,
		Slots:          reply.Slots,
		Suggestions:    reply.Suggestions,
	})
}
