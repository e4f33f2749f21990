package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/Vovarama1992/speech_billing/internal/user"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (app *BotApp) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	tgID := msg.From.ID
	chatID := msg.Chat.ID

	_, err := app.UserService.Get(ctx, tgID)
	isNew := errors.Is(err, user.ErrUserNotFound)

	u, b, err := app.UserService.Register(ctx, tgID, msg.From.UserName)
	if err != nil {
		app.Log.Errorw("[start] register fail", "tg_id", tgID, "err", err)
		_ = app.ErrorNotify.Notify(ctx, err, fmt.Sprintf("register tgID=%d", tgID))
		app.sendText(chatID, MsgRegisterFailed)
		return
	}
	if isNew {
		app.Audit.Log(ctx, tgID, audit.ActionUserCreated, fmt.Sprintf("username=%s balance=%d", u.Username, b.Balance))
	}

	name := u.Username
	if name == "" {
		name = msg.From.FirstName
	}
	app.sendText(chatID, fmt.Sprintf(MsgWelcome, name, billing.FormatBalance(b)))
}

func (app *BotApp) handleBalance(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	if app.isBlocked(ctx, tgID) {
		app.sendText(chatID, MsgBlocked)
		return
	}

	text, err := app.BillingService.BalanceInfo(ctx, tgID)
	if err != nil {
		app.Log.Errorw("[balance] fail", "tg_id", tgID, "err", err)
		app.sendText(chatID, MsgGenericError)
		return
	}

	var pkgs []*packages.Package
	if app.Packages != nil {
		if pkgs, err = app.Packages.List(ctx, true); err != nil {
			app.Log.Warnw("[balance] list packages fail", "err", err)
		}
	}

	out := tgbotapi.NewMessage(chatID, text)
	if kb := BuildBalanceKeyboard(app.TopUpAmount, pkgs); kb != nil {
		out.ReplyMarkup = kb
	}
	app.send(out)
}

// isBlocked: незарегистрированный пользователь не считается заблокированным.
func (app *BotApp) isBlocked(ctx context.Context, tgID int64) bool {
	u, err := app.UserService.Get(ctx, tgID)
	return err == nil && !u.IsActive
}
