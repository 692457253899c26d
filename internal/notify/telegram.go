package notify

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org/bot"

// Telegram delivers reports through a Telegram bot. Recipients are chat
// identifiers, optionally prefixed with "telegram:".
type Telegram struct {
	token string
	http  *resty.Client
	log   *zap.SugaredLogger

	// BaseURL is overridable for tests.
	BaseURL string
}

func NewTelegram(token string, log *zap.SugaredLogger) *Telegram {
	return &Telegram{
		token:   token,
		http:    resty.New().SetTimeout(30 * time.Second),
		log:     log,
		BaseURL: telegramAPI,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	ParseMode string `json:"parse_mode"`
	Text      string `json:"text"`
}

// Deliver sends one message to one chat. Any failure is wrapped as a
// delivery error for the gate's commit decision.
func (t *Telegram) Deliver(recipient, text string) error {
	chatID := strings.TrimPrefix(recipient, "telegram:")

	resp, err := t.http.R().
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(sendMessageRequest{ChatID: chatID, ParseMode: "markdown", Text: text}).
		Post(t.BaseURL + t.token + "/sendMessage")
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "send to %s", recipient), ErrDelivery)
	}
	if resp.StatusCode() != 200 {
		return errors.Mark(errors.Newf("send to %s: status %d", recipient, resp.StatusCode()), ErrDelivery)
	}
	t.log.Debugw("delivered report", "recipient", recipient, "bytes", len(text))
	return nil
}
