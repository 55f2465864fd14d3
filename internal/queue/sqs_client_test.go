package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSend(t *testing.T) {
	api := &fakeSQS{}
	c := NewSQSClientWithAPI(api, " https://sqs.example/queue ")

	if err := c.Send(context.Background(), NewMessage("job-1", "req-1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	in := api.input
	if aws.ToString(in.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(in.QueueUrl))
	}
	msg, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.JobID != "job-1" || msg.RequestID != "req-1" {
		t.Fatalf("unexpected body %+v", msg)
	}
	if aws.ToString(in.MessageAttributes["jobId"].StringValue) != "job-1" ||
		aws.ToString(in.MessageAttributes["requestId"].StringValue) != "req-1" {
		t.Fatalf("unexpected attributes %+v", in.MessageAttributes)
	}
	if in.MessageGroupId != nil || in.MessageDeduplicationId != nil {
		t.Fatalf("standard queue must not set FIFO fields")
	}
}

func TestSQSClientSendFIFO(t *testing.T) {
	api := &fakeSQS{}
	c := NewSQSClientWithAPI(api, "https://sqs.example/jobs.fifo")

	if err := c.Send(context.Background(), NewMessage("job-2", "")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(api.input.MessageGroupId) != "job-2" || aws.ToString(api.input.MessageDeduplicationId) != "job-2" {
		t.Fatalf("expected job id as group and dedup id")
	}
	if _, ok := api.input.MessageAttributes["requestId"]; ok {
		t.Fatalf("empty request id should not be sent")
	}
}

func TestSQSClientSendError(t *testing.T) {
	c := NewSQSClientWithAPI(&fakeSQS{err: errors.New("throttled")}, "q")
	err := c.Send(context.Background(), NewMessage("job-1", ""))
	if err == nil || !strings.Contains(err.Error(), "job-1") {
		t.Fatalf("expected wrapped error naming the job, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "eu-central-1", "  "); err == nil {
		t.Fatal("expected error")
	}
}
