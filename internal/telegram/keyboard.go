package telegram

import (
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackTopUp   = "topup_balance"
	callbackPackage = "pkg_"
)

// BuildBalanceKeyboard возвращает nil, если кнопок нет: пустую разметку
// Telegram не принимает.
func BuildBalanceKeyboard(amount int64, pkgs []*packages.Package) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	if amount > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf(MsgTopUpButton, humanize.Comma(amount)), callbackTopUp),
		))
	}

	for _, p := range pkgs {
		label := fmt.Sprintf(MsgPackageButton, p.Name, humanize.Comma(p.Credits), humanize.CommafWithDigits(p.Price, 2))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", callbackPackage, p.ID)),
		))
	}

	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
