package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lockwhz/secregress/models"
)

const (
	maxMessages    = 10
	receiveBackoff = 5 * time.Second
)

var ErrInvalidJob = errors.New("invalid scan job")

// SQSAPI is the slice of the SQS client the producer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Delivery is one decoded job; Ack removes its message from the queue.
type Delivery struct {
	Job models.ScanJob
	Ack func(ctx context.Context) error
}

// DefaultSQSProducer long-polls the queue and emits decoded jobs.
type DefaultSQSProducer struct {
	Client      SQSAPI
	QueueURL    string
	WaitSeconds int32
	Log         *zap.SugaredLogger
}

// Start polls until ctx is done, then closes the returned channel.
func (p *DefaultSQSProducer) Start(ctx context.Context) <-chan *Delivery {
	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			if err := p.poll(ctx, out); err != nil && ctx.Err() == nil {
				p.log().Errorw("sqs receive failed", "queue", p.QueueURL, "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(receiveBackoff):
				}
			}
		}
	}()
	return out
}

func (p *DefaultSQSProducer) poll(ctx context.Context, out chan<- *Delivery) error {
	resp, err := p.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.QueueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     p.WaitSeconds,
	})
	if err != nil {
		return err
	}

	for _, msg := range resp.Messages {
		job, err := DecodeJob(aws.ToString(msg.Body))
		if err != nil {
			p.log().Warnw("dropping invalid message", "message_id", aws.ToString(msg.MessageId), "error", err)
			if derr := p.delete(ctx, msg); derr != nil {
				p.log().Errorw("delete invalid message", "message_id", aws.ToString(msg.MessageId), "error", derr)
			}
			continue
		}

		d := &Delivery{Job: job, Ack: func(ctx context.Context) error { return p.delete(ctx, msg) }}
		select {
		case out <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *DefaultSQSProducer) delete(ctx context.Context, msg types.Message) error {
	_, err := p.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	return err
}

func (p *DefaultSQSProducer) log() *zap.SugaredLogger {
	if p.Log == nil {
		return zap.NewNop().Sugar()
	}
	return p.Log
}

// DecodeJob parses a message body. A missing job id gets a fresh one.
func DecodeJob(body string) (models.ScanJob, error) {
	var job models.ScanJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return models.ScanJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.Repository.Name == "" || job.Repository.URL == "" {
		return models.ScanJob{}, fmt.Errorf("%w: repository name and url are required", ErrInvalidJob)
	}
	if job.Commits < 0 {
		return models.ScanJob{}, fmt.Errorf("%w: negative commit window", ErrInvalidJob)
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	return job, nil
}
