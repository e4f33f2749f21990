package tasks

import (
	"fmt"

	"github.com/goccy/go-json"
)

const (
	ReplySuccess = "success"
	ReplyError   = "error"
)

// TaskMessage уходит в рабочую очередь.
type TaskMessage struct {
	UserID        int64  `json:"user_id"`
	Kind          Kind   `json:"kind"`
	TaskID        string `json:"task_id"`
	Payload       string `json:"payload"`
	CorrelationID string `json:"correlation_id"`
}

// ReplyMessage публикуется исполнителем в reply_to ровно один раз.
type ReplyMessage struct {
	Status  string `json:"status"`
	TaskID  string `json:"task_id"`
	Kind    Kind   `json:"kind,omitempty"`
	Result  string `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
	Cost    *int64 `json:"cost,omitempty"`
}

func (r ReplyMessage) OK() bool {
	return r.Status == ReplySuccess
}

func NewTaskMessage(t *Task, correlationID string) TaskMessage {
	return TaskMessage{
		UserID:        t.UserID,
		Kind:          t.Kind,
		TaskID:        t.ID,
		Payload:       t.Payload,
		CorrelationID: correlationID,
	}
}

func EncodeTask(m TaskMessage) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeTask разбирает тело сообщения. При неизвестном kind сообщение всё
// равно возвращается, чтобы по task_id можно было ответить ошибкой.
func DecodeTask(body []byte) (TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("decode task message: %w", err)
	}
	if m.TaskID == "" {
		return m, fmt.Errorf("decode task message: missing task_id")
	}
	kind, err := ParseKind(string(m.Kind))
	if err != nil {
		return m, err
	}
	m.Kind = kind
	return m, nil
}

// ReplyFromTask строит ответ по терминальному состоянию задачи.
func ReplyFromTask(t *Task) ReplyMessage {
	reply := ReplyMessage{
		TaskID: t.ID,
		Kind:   t.Kind,
		Cost:   t.Cost,
	}

	var text string
	if t.Result != nil {
		text = *t.Result
	}

	if t.Status == StatusCompleted {
		reply.Status = ReplySuccess
		reply.Result = text
	} else {
		reply.Status = ReplyError
		reply.Message = text
	}
	return reply
}

func ErrorReply(taskID string, kind Kind, err error) ReplyMessage {
	return ReplyMessage{
		Status:  ReplyError,
		TaskID:  taskID,
		Kind:    kind,
		Message: err.Error(),
	}
}

func EncodeReply(r ReplyMessage) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeReply(body []byte) (ReplyMessage, error) {
	var r ReplyMessage
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode reply message: %w", err)
	}
	return r, nil
}
