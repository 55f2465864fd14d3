package main

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"tga-backend/internal/queue"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/telemetry"
	"tga-backend/internal/workerproc"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const receiveCountAttr = "ApproximateReceiveCount"

var errMissingReceipt = errors.New("missing receipt handle")

// consumer long-polls the job queue and runs at most concurrency jobs at once.
type consumer struct {
	client      sqsAPI
	runner      workerproc.Runner
	queueURL    string
	visibility  time.Duration
	concurrency int
	// retryDelay is the pause after a failed receive.
	retryDelay time.Duration
}

// run polls until ctx ends, then waits up to drain for in-flight jobs. It
// reports whether every job finished in time.
func (c *consumer) run(ctx context.Context, drain time.Duration) bool {
	slots := make(chan struct{}, max(1, c.concurrency))
	var inflight sync.WaitGroup

	for ctx.Err() == nil {
		batch, err := c.receive(ctx, cap(slots))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"err": err})
			sleep(ctx, c.retryDelay)
			continue
		}
	dispatch:
		for _, msg := range batch {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				// Undispatched messages become visible again after the timeout.
				break dispatch
			}
			metrics.IncQueueMessage(metrics.MessageReceived)
			inflight.Add(1)
			go func(m sqstypes.Message) {
				defer inflight.Done()
				defer func() { <-slots }()
				c.handle(ctx, m)
			}(msg)
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": drain.String()})
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(drain):
		return false
	}
}

func (c *consumer) receive(ctx context.Context, limit int) ([]sqstypes.Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: int32(min(limit, 10)),
		WaitTimeSeconds:     20,
		VisibilityTimeout:   int32(c.visibility / time.Second),
		AttributeNames:      []sqstypes.QueueAttributeName{receiveCountAttr},
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// handle runs the job named by one message. Messages that can never succeed
// and jobs that reached a terminal state are deleted. A job that could not be
// started stays on the queue for redelivery.
func (c *consumer) handle(ctx context.Context, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	fields := logFields(msg, decoded)
	if err != nil {
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["err"] = err
		telemetry.Error("worker.job.invalid_message", fields)
		c.ack(ctx, msg, fields, metrics.MessageUnrecoverable)
		return
	}

	telemetry.Info("worker.job.received", fields)
	res, err := workerproc.HandleMessage(ctx, c.runner, decoded)
	switch {
	case err != nil && workerproc.Unrecoverable(err):
		fields["err"] = err
		telemetry.Error("worker.job.unknown", fields)
		c.ack(ctx, msg, fields, metrics.MessageUnrecoverable)
	case err != nil:
		fields["err"] = err
		telemetry.Error("worker.job.failed", fields)
		metrics.IncQueueMessage(metrics.MessageFailed)
	case res.Skipped:
		if c.ack(ctx, msg, fields, metrics.MessageSkipped) {
			telemetry.Info("worker.job.skipped", fields)
		}
	default:
		fields["status"] = res.Status
		if c.ack(ctx, msg, fields, metrics.MessageCompleted) {
			telemetry.Info("worker.job.completed", fields)
		}
	}
}

// ack deletes msg and counts it under outcome. The delete outlives ctx so a
// job finished during shutdown is not redelivered.
func (c *consumer) ack(ctx context.Context, msg sqstypes.Message, fields map[string]any, outcome string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	var err error
	if receipt == "" {
		err = errMissingReceipt
	} else {
		_, err = c.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: aws.String(receipt),
		})
	}
	if err != nil {
		failed := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			failed[k] = v
		}
		failed["err"] = err
		telemetry.Error("worker.job.delete_failed", failed)
		return false
	}
	metrics.IncQueueMessage(outcome)
	return true
}

func logFields(msg sqstypes.Message, decoded queue.Message) map[string]any {
	fields := map[string]any{
		"job_id":         decoded.JobID,
		"sqs_message_id": aws.ToString(msg.MessageId),
	}
	if n, err := strconv.Atoi(msg.Attributes[receiveCountAttr]); err == nil {
		fields["receive_count"] = n
	}
	if decoded.RequestID != "" {
		fields["request_id"] = decoded.RequestID
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
