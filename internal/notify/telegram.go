// Package notify sends short sweep summaries to a Telegram chat.
package notify

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier struct {
	tg     *tgbotapi.BotAPI
	chatID int64
}

func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &Notifier{tg: api, chatID: chatID}, nil
}

// SweepDone reports one sweep's totals. Silent when nothing happened.
func (n *Notifier) SweepDone(processed, failed int) error {
	if processed == 0 && failed == 0 {
		return nil
	}
	text := fmt.Sprintf("watermarkd: %d processed, %d failed", processed, failed)
	msg := tgbotapi.NewMessage(n.chatID, text)
	_, err := n.tg.Send(msg)
	return err
}
