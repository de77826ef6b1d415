// Package telegram is a thin Bot API adapter: send, edit, long-poll. Message
// formatting and admission logic live with the callers.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/types"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL  = "https://api.telegram.org"
	longPollSeconds = 30
)

// Client implements ports.Notifier and ports.UpdateSource against one chat.
// Poll is not safe for concurrent use; the engine runs a single update loop.
type Client struct {
	token  string
	chatID int64
	base   string
	http   *http.Client
	offset int64
}

func NewClient(token string, chatID int64) *Client {
	return &Client{
		token:  token,
		chatID: chatID,
		base:   defaultBaseURL,
		// Must outlive the long poll.
		http: &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
	}
}

// WithBaseURL points the client at a fake Bot API server. Tests only.
func (c *Client) WithBaseURL(u string) *Client {
	c.base = strings.TrimRight(u, "/")
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *message `json:"message"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func (c *Client) SendMessage(ctx context.Context, text string, buttons []types.Button) (int64, error) {
	payload := map[string]any{
		"chat_id": c.chatID,
		"text":    text,
	}
	if len(buttons) > 0 {
		row := make([]inlineButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, inlineButton{Text: b.Label, CallbackData: b.Data})
		}
		payload["reply_markup"] = replyMarkup{InlineKeyboard: [][]inlineButton{row}}
	}
	var msg message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) EditMessage(ctx context.Context, messageID int64, text string) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    c.chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// Poll long-polls for updates and maps them into the engine's tagged union.
// Input from chats other than the configured one is dropped.
func (c *Client) Poll(ctx context.Context) ([]types.Update, error) {
	var raw []update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          c.offset,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]types.Update, 0, len(raw))
	for _, u := range raw {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		switch {
		case u.Message != nil:
			if u.Message.Chat.ID != c.chatID || u.Message.Text == "" {
				continue
			}
			out = append(out, types.Update{Text: u.Message.Text})
		case u.CallbackQuery != nil:
			cq := u.CallbackQuery
			if cq.Message == nil || cq.Message.Chat.ID != c.chatID {
				continue
			}
			action, mac, ok := splitCallbackData(cq.Data)
			if !ok {
				log.WithField("data", cq.Data).Warn("unparseable callback data ignored")
				continue
			}
			// Ack right away so the button stops spinning; the real feedback
			// is the message edit.
			if err := c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": cq.ID}, nil); err != nil {
				log.WithError(err).Debug("answerCallbackQuery failed")
			}
			out = append(out, types.Update{Callback: &types.Callback{
				Action:    action,
				MAC:       mac,
				MessageID: cq.Message.MessageID,
			}})
		}
	}
	return out, nil
}

// splitCallbackData parses "<approve|deny>_<mac>".
func splitCallbackData(data string) (action, mac string, ok bool) {
	action, mac, found := strings.Cut(data, "_")
	if !found || mac == "" {
		return "", "", false
	}
	if action != "approve" && action != "deny" {
		return "", "", false
	}
	return action, mac, true
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return types.Err(types.ErrChannelAccess, err, "encode %s", method)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.Err(types.ErrChannelAccess, err, "build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Err(types.ErrChannelAccess, err, "%s", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Err(types.ErrChannelAccess, err, "read %s response", method)
	}
	var apiResp apiResponse
	if err := json.Unmarshal(b, &apiResp); err != nil {
		return types.Err(types.ErrChannelAccess, err, "decode %s response", method)
	}
	if !apiResp.OK {
		return types.Err(types.ErrChannelAccess, nil, "%s: %s", method, apiResp.Description)
	}
	if out != nil {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return types.Err(types.ErrChannelAccess, err, "decode %s result", method)
		}
	}
	return nil
}
