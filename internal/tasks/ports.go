package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskExists        = errors.New("task already exists")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrUnknownKind       = errors.New("unknown task kind")
	ErrEmptyPayload      = errors.New("empty task payload")
)

type Kind string

const (
	KindTextToSpeech Kind = "TEXT_TO_SPEECH"
	KindSpeechToText Kind = "SPEECH_TO_TEXT"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindTextToSpeech, KindSpeechToText:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
	// StatusCancelled объявлен, но ни один переход в него не ведёт.
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusCreated:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusError},
}

// CanTransition сообщает, разрешён ли переход from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Request это вход задачи: текст для синтеза или ссылка на аудио.
type Request interface {
	Kind() Kind
	Payload() string
}

type TextToSpeech struct {
	Text string
}

func (TextToSpeech) Kind() Kind        { return KindTextToSpeech }
func (r TextToSpeech) Payload() string { return r.Text }

type SpeechToText struct {
	AudioRef string
}

func (SpeechToText) Kind() Kind        { return KindSpeechToText }
func (r SpeechToText) Payload() string { return r.AudioRef }

func NewRequest(kind Kind, payload string) (Request, error) {
	var req Request
	switch kind {
	case KindTextToSpeech:
		req = TextToSpeech{Text: payload}
	case KindSpeechToText:
		req = SpeechToText{AudioRef: payload}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return req, Validate(req)
}

func Validate(req Request) error {
	if req == nil {
		return ErrUnknownKind
	}
	if strings.TrimSpace(req.Payload()) == "" {
		return fmt.Errorf("%w: kind=%s", ErrEmptyPayload, req.Kind())
	}
	return nil
}

type Task struct {
	ID         string     `json:"task_id"`
	UserID     int64      `json:"user_id"`
	Kind       Kind       `json:"kind"`
	Payload    string     `json:"payload"`
	Status     Status     `json:"status"`
	Result     *string    `json:"result,omitempty"`
	Cost       *int64     `json:"cost,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (t *Task) Request() (Request, error) {
	return NewRequest(t.Kind, t.Payload)
}

// Update описывает переход задачи. Result и Cost пишутся только вместе
// с переходом в терминальный статус.
type Update struct {
	From   Status
	To     Status
	Result *string
	Cost   *int64
}

func (u Update) validate() error {
	if !CanTransition(u.From, u.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.From, u.To)
	}
	if !u.To.IsTerminal() && (u.Result != nil || u.Cost != nil) {
		return fmt.Errorf("%w: result/cost only on terminal status", ErrInvalidTransition)
	}
	return nil
}

type Repo interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// Update выполняет compare-and-set по статусу. Если задача уже не в
	// u.From, возвращается её текущее состояние и ErrInvalidTransition.
	Update(ctx context.Context, id string, u Update) (*Task, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Task, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}
