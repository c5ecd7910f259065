package telegram

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"callbridge/internal/dedup"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook is the gin endpoint Telegram delivers updates to. The bot token in
// the path is the primary guard; the optional secret header is a second one.
// Updates are deduplicated by update id before dispatch so Telegram's
// redelivery of slow updates stays idempotent.
type Webhook struct {
	botToken string
	secret   string
	dedup    dedup.Repo
	handler  *Handler
	log      *slog.Logger
}

func NewWebhook(botToken, secret string, dedupRepo dedup.Repo, handler *Handler, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		botToken: botToken,
		secret:   secret,
		dedup:    dedupRepo,
		handler:  handler,
		log:      log,
	}
}

// Handle serves POST /webhook/:token. It always answers 200 once the request
// is authenticated and parseable; handler failures must not make Telegram
// redeliver the update.
func (w *Webhook) Handle(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.Param("token")), []byte(w.botToken)) != 1 {
		c.Status(http.StatusNotFound)
		return
	}
	if w.secret != "" && c.GetHeader(secretTokenHeader) != w.secret {
		c.Status(http.StatusForbidden)
		return
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		w.log.Warn("unparseable update", "err", err)
		c.Status(http.StatusBadRequest)
		return
	}

	// Dedup is fail-open: when the backend is down it is better to risk a
	// duplicate than to drop updates.
	first, err := w.dedup.MarkSeen(c.Request.Context(), int64(upd.UpdateID))
	if err != nil {
		w.log.Warn("dedup check failed, processing anyway", "update_id", upd.UpdateID, "err", err)
		first = true
	}
	if !first {
		w.log.Debug("duplicate update dropped", "update_id", upd.UpdateID)
		c.Status(http.StatusOK)
		return
	}

	w.handler.HandleUpdate(c.Request.Context(), upd)
	c.Status(http.StatusOK)
}
