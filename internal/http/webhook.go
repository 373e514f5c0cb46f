package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"finbot/internal/bot"
	"finbot/internal/core"
	"finbot/internal/log"
)

const (
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes = 1 << 20
)

// Update is the subset of a Telegram update the bot reads.
type Update struct {
	UpdateID int64          `json:"update_id"`
	Message  *UpdateMessage `json:"message,omitempty"`
}

type UpdateMessage struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// webhookReply is answered in the webhook response body, which Telegram
// executes as a sendMessage call.
type webhookReply struct {
	Method string            `json:"method"`
	ChatID int64             `json:"chat_id"`
	Text   string            `json:"text"`
	Chart  *core.ChartSeries `json:"chart,omitempty"`
}

// pendingUpdate is the dedup cache slot of one update_id. It is reserved
// before the command runs; done closes once reply is set.
type pendingUpdate struct {
	done  chan struct{}
	reply webhookReply
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if s.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(s.secret)) != 1 {
		logger.WarnContext(ctx, "Webhook call with invalid secret token")
		writeError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var upd Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		logger.WarnContext(ctx, "Malformed webhook update", log.FieldError, err)
		writeError(w, http.StatusBadRequest, "malformed update")
		return
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		// edits, joins, stickers and the like carry no command
		w.WriteHeader(http.StatusNoContent)
		return
	}

	key := strconv.FormatInt(upd.UpdateID, 10)
	slot := &pendingUpdate{done: make(chan struct{})}
	if !s.updates.SetIfAbsent(key, slot) {
		if prev, ok := s.updates.Get(key); ok {
			logger.DebugContext(ctx, "Duplicate update answered from cache", log.FieldUpdateID, upd.UpdateID)
			select {
			case <-prev.done:
				writeJSON(w, http.StatusOK, prev.reply)
			case <-ctx.Done():
				writeError(w, http.StatusServiceUnavailable, "update still in progress")
			}
			return
		}
		// evicted between the two calls
		s.updates.Set(key, slot)
	}
	defer close(slot.done)

	out := s.commands.Handle(ctx, bot.Message{
		UserID:    core.UserID(msg.From.ID),
		ChatID:    msg.Chat.ID,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	})
	slot.reply = webhookReply{
		Method: "sendMessage",
		ChatID: msg.Chat.ID,
		Text:   out.Text,
		Chart:  out.Chart,
	}
	writeJSON(w, http.StatusOK, slot.reply)
}
