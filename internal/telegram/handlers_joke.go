package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/Vovarama1992/speech_billing/internal/jokes"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// jokeKey привязывает списание к сообщению с командой.
func jokeKey(tgID int64, messageID int) string {
	return fmt.Sprintf("joke:%d_%d", tgID, messageID)
}

func (app *BotApp) randomJoke(ctx context.Context, chatID int64) *jokes.Joke {
	if app.Jokes == nil {
		app.sendText(chatID, MsgNoJokes)
		return nil
	}

	j, err := app.Jokes.Random(ctx, "")
	if err != nil {
		if errors.Is(err, jokes.ErrNoJokes) {
			app.sendText(chatID, MsgNoJokes)
			return nil
		}
		app.Log.Errorw("[joke] random fail", "chat_id", chatID, "err", err)
		_ = app.ErrorNotify.Notify(ctx, err, "random joke")
		app.sendText(chatID, MsgGenericError)
		return nil
	}
	return j
}

// /joke: анекдот из базы за фиксированную цену, без задачи.
func (app *BotApp) handleJoke(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	j := app.randomJoke(ctx, chatID)
	if j == nil {
		return
	}

	b, err := app.Flow.Charge(ctx, tgID, jokeKey(tgID, msg.MessageID), jokes.TextPrice, fmt.Sprintf("Анекдот %d", j.ID))
	if err != nil {
		app.replyError(chatID, tgID, err)
		return
	}

	app.sendText(chatID, fmt.Sprintf(MsgJoke, humanize.Comma(jokes.TextPrice), j.Text))
	_, text := app.BillingService.ReportBalance(b)
	app.sendText(chatID, text)
	app.Log.Infow("[joke] sent", "tg_id", tgID, "joke_id", j.ID)
}

// /joke_voice: анекдот озвучивается обычной TTS-задачей.
func (app *BotApp) handleJokeVoice(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	j := app.randomJoke(ctx, chatID)
	if j == nil {
		return
	}

	wait := app.sendText(chatID, MsgSynthesizing)
	defer app.deleteMessage(chatID, wait.MessageID)

	out, err := app.Flow.Convert(ctx, tgID, int64(msg.MessageID), tasks.TextToSpeech{Text: j.Text})
	if err != nil {
		app.replyError(chatID, tgID, err)
		return
	}
	if !app.sendAudio(ctx, chatID, msg.MessageID, out) {
		return
	}

	caption := tgbotapi.NewMessage(chatID, fmt.Sprintf(MsgJokeVoice, humanize.Comma(out.Cost), html.EscapeString(j.Text)))
	caption.ParseMode = tgbotapi.ModeHTML
	app.send(caption)

	app.reportBalance(chatID, out)
	app.Log.Infow("[joke] voice sent", "tg_id", tgID, "joke_id", j.ID, "task_id", out.TaskID)
}
