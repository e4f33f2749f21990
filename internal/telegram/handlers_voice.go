package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Vovarama1992/speech_billing/internal/storage"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot API отдаёт ботам файлы до 20 МБ.
const maxVoiceSize = 20 << 20

// handleVoice: голосовое -> хранилище -> STT-задача -> текст в ответ.
func (app *BotApp) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	app.Log.Infow("[voice] start", "tg_id", tgID, "file_id", msg.Voice.FileID, "duration", msg.Voice.Duration)

	if msg.Voice.FileSize > maxVoiceSize {
		app.sendText(chatID, MsgVoiceTooLarge)
		return
	}

	data, err := app.download(ctx, msg.Voice.FileID)
	if err != nil {
		app.Log.Errorw("[voice] download fail", "tg_id", tgID, "err", err)
		app.sendText(chatID, MsgVoiceFailed)
		return
	}

	key := storage.Key(storage.In, tgID, strconv.Itoa(msg.MessageID), "ogg")
	ref, err := app.Storage.Save(ctx, key, data, "audio/ogg")
	if err != nil {
		app.Log.Errorw("[voice] save fail", "tg_id", tgID, "err", err)
		_ = app.ErrorNotify.Notify(ctx, err, fmt.Sprintf("save voice tgID=%d", tgID))
		app.sendText(chatID, MsgGenericError)
		return
	}

	wait := app.sendText(chatID, MsgRecognizing)
	defer app.deleteMessage(chatID, wait.MessageID)

	out, err := app.Flow.Convert(ctx, tgID, int64(msg.MessageID), tasks.SpeechToText{AudioRef: ref})
	if err != nil {
		app.replyError(chatID, tgID, err)
		return
	}

	text := strings.TrimSpace(out.Result)
	if text == "" {
		text = MsgNothingHeard
	}
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyToMessageID = msg.MessageID
	app.send(reply)

	app.reportBalance(chatID, out)
	app.Log.Infow("[voice] done", "tg_id", tgID, "task_id", out.TaskID)
}

func (app *BotApp) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := app.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(app.bot.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := app.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download voice: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceSize+1))
	if err != nil {
		return nil, fmt.Errorf("read voice: %w", err)
	}
	if len(data) > maxVoiceSize {
		return nil, fmt.Errorf("voice exceeds %d bytes", maxVoiceSize)
	}
	return data, nil
}
