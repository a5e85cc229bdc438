package dispatch

import (
	"context"

	"github.com/shaiso/actionflow/internal/mq"
)

// JobPublisher — часть mq.Publisher, нужная MQLauncher.
type JobPublisher interface {
	PublishJobSubmit(ctx context.Context, payload mq.JobSubmitPayload) error
}

// MQLauncher передаёт задания launcher-сервису через RabbitMQ.
type MQLauncher struct {
	publisher JobPublisher
}

// NewMQLauncher создаёт MQLauncher.
func NewMQLauncher(publisher JobPublisher) *MQLauncher {
	return &MQLauncher{publisher: publisher}
}

// Launch публикует задание в jobs.submit.
func (l *MQLauncher) Launch(ctx context.Context, job Job) error {
	return l.publisher.PublishJobSubmit(ctx, mq.JobSubmitPayload{
		ExecutableID: job.ExecutableID,
		Command:      job.Command,
		Args:         job.Args,
		NodeID:       job.NodeID,
		CallbackURL:  job.CallbackURL,
	})
}
