package telegram

import (
	"context"
	"net/http"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/conversion"
	"github.com/Vovarama1992/speech_billing/internal/jokes"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/notificator"
	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/Vovarama1992/speech_billing/internal/storage"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/Vovarama1992/speech_billing/internal/user"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Converter interface {
	Convert(ctx context.Context, userID, messageID int64, req tasks.Request) (*conversion.Outcome, error)
	Charge(ctx context.Context, userID int64, key string, amount int64, reason string) (*ledger.Balance, error)
}

type BotApp struct {
	UserService    user.Service
	BillingService billing.Service
	Flow           Converter
	Packages       packages.Service
	Jokes          jokes.Service
	Storage        storage.Store
	ErrorNotify    notificator.Notificator
	Audit          audit.Logger
	Log            *zap.SugaredLogger
	TopUpAmount    int64
	HTTPClient     *http.Client

	bot      *tgbotapi.BotAPI
	download func(ctx context.Context, fileID string) ([]byte, error)
}

func (app *BotApp) attach(bot *tgbotapi.BotAPI) {
	app.bot = bot
	if app.HTTPClient == nil {
		app.HTTPClient = http.DefaultClient
	}
	if app.download == nil {
		app.download = app.downloadFile
	}
}

// Run читает апдейты до отмены ctx, каждый апдейт в своей горутине.
func (app *BotApp) Run(ctx context.Context, bot *tgbotapi.BotAPI) {
	app.attach(bot)
	app.runBotLoop(ctx)
}

func (app *BotApp) send(c tgbotapi.Chattable) tgbotapi.Message {
	m, err := app.bot.Send(c)
	if err != nil {
		app.Log.Warnw("[bot] send fail", "err", err)
	}
	return m
}

func (app *BotApp) sendText(chatID int64, text string) tgbotapi.Message {
	return app.send(tgbotapi.NewMessage(chatID, text))
}

func (app *BotApp) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := app.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		app.Log.Debugw("[bot] delete fail", "chat_id", chatID, "message_id", messageID, "err", err)
	}
}
