package telegram

import (
	"context"
	"fmt"
	"path"

	"github.com/Vovarama1992/speech_billing/internal/conversion"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleText: текст -> TTS-задача -> голосовое в ответ.
func (app *BotApp) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	app.Log.Infow("[text] start", "tg_id", tgID, "len", len(msg.Text))

	wait := app.sendText(chatID, MsgSynthesizing)
	defer app.deleteMessage(chatID, wait.MessageID)

	out, err := app.Flow.Convert(ctx, tgID, int64(msg.MessageID), tasks.TextToSpeech{Text: msg.Text})
	if err != nil {
		app.replyError(chatID, tgID, err)
		return
	}

	if !app.sendAudio(ctx, chatID, msg.MessageID, out) {
		return
	}

	app.reportBalance(chatID, out)
	app.Log.Infow("[text] done", "tg_id", tgID, "task_id", out.TaskID)
}

// sendAudio отправляет озвученный результат задачи голосовым.
func (app *BotApp) sendAudio(ctx context.Context, chatID int64, replyTo int, out *conversion.Outcome) bool {
	data, err := app.Storage.Load(ctx, out.Result)
	if err != nil {
		app.Log.Errorw("[text] load audio fail", "chat_id", chatID, "ref", out.Result, "err", err)
		_ = app.ErrorNotify.Notify(ctx, err, fmt.Sprintf("load audio task=%s", out.TaskID))
		app.sendText(chatID, MsgGenericError)
		return false
	}

	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: path.Base(out.Result), Bytes: data})
	voice.ReplyToMessageID = replyTo
	app.send(voice)
	return true
}

func (app *BotApp) replyError(chatID, tgID int64, err error) {
	app.Log.Warnw("[convert] fail", "tg_id", tgID, "err", err)
	app.sendText(chatID, conversion.UserMessage(err))
}

func (app *BotApp) reportBalance(chatID int64, out *conversion.Outcome) {
	if out.Balance == nil {
		return
	}
	_, text := app.BillingService.ReportBalance(out.Balance)
	app.sendText(chatID, text)
}
