package pricing

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Vovarama1992/speech_billing/internal/tasks"
)

var ErrEmptyContent = errors.New("nothing to price: empty content")

// Func считает стоимость задачи в кредитах. Функция чистая: одинаковый вход
// всегда даёт одинаковую цену.
type Func func(kind tasks.Kind, content []byte) (int64, error)

const (
	FlatTextToSpeech int64 = 5
	FlatSpeechToText int64 = 4

	charsPerCredit   = 100
	secondsPerCredit = 10
	// 16 kHz, 16 bit, mono
	bytesPerSecond = 16000 * 2
)

func New(mode string) (Func, error) {
	switch mode {
	case "", "flat":
		return Flat, nil
	case "length":
		return ByLength, nil
	}
	return nil, fmt.Errorf("unknown pricing mode %q", mode)
}

func Flat(kind tasks.Kind, content []byte) (int64, error) {
	if len(content) == 0 {
		return 0, ErrEmptyContent
	}
	switch kind {
	case tasks.KindTextToSpeech:
		return FlatTextToSpeech, nil
	case tasks.KindSpeechToText:
		return FlatSpeechToText, nil
	}
	return 0, fmt.Errorf("%w: %q", tasks.ErrUnknownKind, kind)
}

// ByLength: TTS за каждые 100 символов, STT за каждые ~10 секунд аудио.
func ByLength(kind tasks.Kind, content []byte) (int64, error) {
	if len(content) == 0 {
		return 0, ErrEmptyContent
	}
	switch kind {
	case tasks.KindTextToSpeech:
		return ceilDiv(int64(utf8.RuneCount(content)), charsPerCredit), nil
	case tasks.KindSpeechToText:
		seconds := ceilDiv(int64(len(content)), bytesPerSecond)
		return ceilDiv(seconds, secondsPerCredit), nil
	}
	return 0, fmt.Errorf("%w: %q", tasks.ErrUnknownKind, kind)
}

func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 1
	}
	return (n + d - 1) / d
}
