package telegram

const (
	MsgWelcome        = "👋 Привет, %s!\nОтправь текст, и я озвучу его. Отправь голосовое, и я переведу его в текст.\n\n%s"
	MsgRegisterFailed = "⚠️ Не удалось зарегистрироваться. Попробуй позже."
	MsgUnknownCommand = "Неизвестная команда. Доступно: /start, /balance, /joke, /joke_voice"
	MsgUnsupported    = "Отправь текст или голосовое сообщение."
	MsgSynthesizing   = "🎙 Озвучиваю…"
	MsgRecognizing    = "📝 Распознаю…"
	MsgNothingHeard   = "🤷 Речь не распознана."
	MsgVoiceTooLarge  = "⚠️ Голосовое слишком большое."
	MsgVoiceFailed    = "⚠️ Не удалось получить голосовое."
	MsgGenericError   = "Произошла ошибка при обработке сообщения."
	MsgTopUpButton    = "➕ Пополнить на %s"
	MsgTopUpDone      = "✅ Баланс пополнен на %s кредитов.\n\n%s"
	MsgPackageButton  = "💳 %s: %s кредитов за %s ₽"
	MsgPayLink        = "🔄 Для оплаты перейди по ссылке:\n%s"
	MsgPackageFailed  = "❗ Пакет недоступен."
	MsgPayFailed      = "⚠️ Не удалось создать оплату."
	MsgBlocked        = "Извините, ваш аккаунт заблокирован."
	MsgNoJokes        = "Извините, у меня закончились анекдоты 😢"
	MsgJoke           = "💰 Стоимость анекдота: %s кредит\n\n%s"
	MsgJokeVoice      = "💰 Стоимость анекдота: %s кредитов\n<tg-spoiler>%s</tg-spoiler>"
)
