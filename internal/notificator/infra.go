package notificator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoBot = errors.New("notificator: bot is not set")

type Infra struct {
	mu     sync.RWMutex
	bot    *tgbotapi.BotAPI
	admins []int64
}

func NewInfra(bot *tgbotapi.BotAPI, admins ...int64) *Infra {
	return &Infra{bot: bot, admins: admins}
}

// SetBot позволяет передать бота после его инициализации.
func (i *Infra) SetBot(bot *tgbotapi.BotAPI) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.bot = bot
}

func (i *Infra) getBot() *tgbotapi.BotAPI {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.bot
}

func (i *Infra) Notify(ctx context.Context, err error, details string) error {
	bot := i.getBot()
	if bot == nil {
		log.Printf("[notificator] no bot, dropped: err=%v details=%s", err, details)
		return ErrNoBot
	}

	text := fmt.Sprintf("❗ Ошибка в боте @%s\n\nОшибка: %v\n\nДетали: %s", bot.Self.UserName, err, details)

	for _, chatID := range i.admins {
		if chatID == 0 {
			continue
		}
		if _, sendErr := bot.Send(tgbotapi.NewMessage(chatID, text)); sendErr != nil {
			log.Printf("[notificator] send fail to %d: %v", chatID, sendErr)
			return sendErr
		}
	}
	return nil
}

func (i *Infra) UserNotify(ctx context.Context, chatID int64, text string) error {
	bot := i.getBot()
	if bot == nil {
		return ErrNoBot
	}
	_, err := bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
