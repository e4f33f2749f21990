package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (app *BotApp) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	tgID := cb.From.ID
	chatID := tgID
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	}
	data := cb.Data

	// всегда отвечаем Telegram
	if _, err := app.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		app.Log.Debugw("[callback] answer fail", "err", err)
	}

	app.Log.Infow("[callback]", "tg_id", tgID, "data", data)

	if app.isBlocked(ctx, tgID) {
		app.sendText(chatID, MsgBlocked)
		return
	}

	// ---------------------------
	// Пополнение кнопкой
	// ---------------------------
	if data == callbackTopUp {
		if app.TopUpAmount <= 0 {
			return
		}
		b, err := app.BillingService.TopUp(ctx, tgID, app.TopUpAmount, "telegram topup")
		if err != nil {
			app.Log.Errorw("[callback] topup fail", "tg_id", tgID, "err", err)
			_ = app.ErrorNotify.Notify(ctx, err, fmt.Sprintf("topup tgID=%d", tgID))
			app.sendText(chatID, MsgGenericError)
			return
		}
		app.sendText(chatID, fmt.Sprintf(MsgTopUpDone, humanize.Comma(app.TopUpAmount), billing.FormatBalance(b)))
		return
	}

	// ---------------------------
	// Пакеты кредитов
	// ---------------------------
	if strings.HasPrefix(data, callbackPackage) && app.Packages != nil {
		id, err := strconv.ParseInt(strings.TrimPrefix(data, callbackPackage), 10, 64)
		if err != nil {
			app.sendText(chatID, MsgPackageFailed)
			return
		}

		payURL, err := app.Packages.CreatePayment(ctx, tgID, id)
		if err != nil {
			app.Log.Errorw("[callback] create payment fail", "tg_id", tgID, "package_id", id, "err", err)
			_ = app.ErrorNotify.Notify(ctx, err, "Ошибка создания платежа")
			app.sendText(chatID, MsgPayFailed)
			return
		}

		app.sendText(chatID, fmt.Sprintf(MsgPayLink, payURL))
	}
}
