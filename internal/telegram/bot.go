package telegram

import (
	"context"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// runBotLoop: главный цикл получения апдейтов
func (app *BotApp) runBotLoop(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := app.bot.GetUpdatesChan(u)
	app.Log.Infow("[bot_loop] started", "username", app.bot.Self.UserName)
	app.Audit.Log(ctx, 0, audit.ActionBotStarted, "@"+app.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			app.bot.StopReceivingUpdates()
			app.Log.Infow("[bot_loop] stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go app.dispatchUpdate(ctx, update)
		}
	}
}

func (app *BotApp) dispatchUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			app.Log.Errorw("[bot_loop] panic", "update_id", update.UpdateID, "err", err)
			_ = app.ErrorNotify.Notify(ctx, err, fmt.Sprintf("update=%d", update.UpdateID))
		}
	}()

	switch {
	case update.Message != nil:
		app.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		app.handleCallback(ctx, update.CallbackQuery)
	}
}

func (app *BotApp) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	app.Log.Debugw("[bot_touch]", "tg_id", msg.From.ID, "message_id", msg.MessageID)

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			app.handleStart(ctx, msg)
		case "balance":
			app.handleBalance(ctx, msg)
		case "joke":
			app.handleJoke(ctx, msg)
		case "joke_voice":
			app.handleJokeVoice(ctx, msg)
		default:
			app.sendText(msg.Chat.ID, MsgUnknownCommand)
		}
	case msg.Voice != nil:
		app.handleVoice(ctx, msg)
	case msg.Text != "":
		app.handleText(ctx, msg)
	default:
		app.sendText(msg.Chat.ID, MsgUnsupported)
	}
}
