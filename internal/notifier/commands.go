package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"alphabot/internal/logger"
)

// CommandHandler resolves a chat command ("/status", "/positions", ...)
// to a reply. Returning "" suppresses the reply.
type CommandHandler func(ctx context.Context, command string) string

// Commander long-polls the Telegram getUpdates endpoint and dispatches
// recognized commands. It shares nothing with the outbound notifier so a
// flood of commands cannot delay trade alerts.
type Commander struct {
	botToken string
	chatID   string
	client   *http.Client
	handler  CommandHandler

	offset int64
}

func NewCommander(botToken, chatID string, handler CommandHandler) *Commander {
	return &Commander{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 35 * time.Second},
		handler:  handler,
	}
}

// Run polls until the context is canceled. Poll errors back off and
// retry; the loop never exits on its own.
func (c *Commander) Run(ctx context.Context) {
	if c.botToken == "" {
		return
	}
	logger.Infof("telegram: command listener started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnf("telegram: poll error: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Commander) poll(ctx context.Context) error {
	url := fmt.Sprintf(
		"https://api.telegram.org/bot%s/getUpdates?timeout=30&offset=%d",
		c.botToken, c.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("getUpdates status=%d", resp.StatusCode)
	}

	for _, update := range gjson.GetBytes(body, "result").Array() {
		id := update.Get("update_id").Int()
		if id >= c.offset {
			c.offset = id + 1
		}
		chatID := update.Get("message.chat.id").String()
		if c.chatID != "" && chatID != c.chatID {
			continue
		}
		text := strings.TrimSpace(update.Get("message.text").String())
		if !strings.HasPrefix(text, "/") {
			continue
		}
		command := strings.ToLower(strings.Fields(text)[0])
		reply := c.handler(ctx, command)
		if reply == "" {
			continue
		}
		note := NewTelegram(c.botToken, chatID)
		if err := note.SendText(reply); err != nil {
			logger.Warnf("telegram: reply to %s failed: %v", command, err)
		}
	}
	return nil
}
