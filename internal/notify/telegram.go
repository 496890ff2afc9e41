// Package notify forwards selected audit entries to administrators over
// Telegram.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/models"
	"github.com/kauri-edtech/smssync/internal/observability"
)

type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	log     *zap.SugaredLogger
}

// NewTelegram returns nil when token or chat list is empty, which callers
// treat as notifications disabled.
func NewTelegram(token string, chatIDs []int64, log *zap.SugaredLogger) (*Telegram, error) {
	if token == "" || len(chatIDs) == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	log.Infow("telegram notifications enabled", "bot", bot.Self.UserName, "chats", len(chatIDs))
	return &Telegram{bot: bot, chatIDs: chatIDs, log: log}, nil
}

// NotifyError sends one audit entry to every admin chat. Delivery failures
// are logged and never propagate into the sync.
func (t *Telegram) NotifyError(ctx context.Context, e *models.LogEntry) {
	text := format(e)
	for _, chatID := range t.chatIDs {
		if ctx.Err() != nil {
			return
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := t.bot.Send(msg); err != nil {
			if isSystemErr(err) {
				observability.CaptureErr(err)
			}
			t.log.Warnw("telegram send failed", "chat", chatID, "err", err)
		}
	}
}

func format(e *models.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ sync %s", e.Error)
	if e.SchoolNo != 0 {
		fmt.Fprintf(&b, " school %d", e.SchoolNo)
	}
	fmt.Fprintf(&b, "\ntarget: %s", e.Target)
	if e.Action != "" {
		fmt.Fprintf(&b, ", action: %s", e.Action)
	}
	if len(e.Info) > 0 {
		keys := make([]string, 0, len(e.Info))
		for k := range e.Info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %v", k, e.Info[k])
		}
	}
	return b.String()
}

// System errors (5xx, 429, timeouts) go to Sentry; Telegram-side
// validation noise does not.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "429") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "timeout") {
		return true
	}
	return false
}
