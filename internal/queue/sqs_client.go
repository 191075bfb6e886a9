package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI abstracts the AWS SQS client for testability.
type sqsAPI interface {
	SendMessage(ctx context.Context, input *sqsSendInput) (*sqsSendOutput, error)
	ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error)
	DeleteMessage(ctx context.Context, input *sqsDeleteInput) error
	ChangeMessageVisibility(ctx context.Context, input *sqsChangeVisibilityInput) error
}

// sqsSendInput mirrors the fields needed for SQS SendMessage.
type sqsSendInput struct {
	QueueURL               string
	MessageBody            string
	MessageDeduplicationID string
	MessageGroupID         string
}

// sqsSendOutput contains the result of a successful SendMessage call.
type sqsSendOutput struct {
	MessageID string
}

// sqsReceiveInput mirrors the fields needed for SQS ReceiveMessage.
type sqsReceiveInput struct {
	QueueURL            string
	MaxNumberOfMessages int32
	WaitTimeSeconds     int32
	VisibilityTimeout   int32
}

// sqsReceiveOutput contains the messages returned by ReceiveMessage.
type sqsReceiveOutput struct {
	Messages []sqsReceivedMessage
}

// sqsReceivedMessage represents a single message received from SQS.
type sqsReceivedMessage struct {
	MessageID     string
	ReceiptHandle string
	Body          string
	ReceiveCount  int
}

// sqsDeleteInput mirrors the fields needed for SQS DeleteMessage.
type sqsDeleteInput struct {
	QueueURL      string
	ReceiptHandle string
}

// sqsChangeVisibilityInput mirrors the fields needed for SQS ChangeMessageVisibility.
type sqsChangeVisibilityInput struct {
	QueueURL          string
	ReceiptHandle     string
	VisibilityTimeout int32
}

// awsSQSClient wraps the real AWS SQS SDK client and implements sqsAPI.
type awsSQSClient struct {
	client *sqs.Client
}

// newAWSSQSClient creates an awsSQSClient for the given region. A non-empty
// endpoint overrides service resolution (LocalStack, ElasticMQ).
func newAWSSQSClient(ctx context.Context, region, endpoint string) (*awsSQSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &awsSQSClient{client: client}, nil
}

// SendMessage sends a message to the specified SQS queue.
func (c *awsSQSClient) SendMessage(ctx context.Context, input *sqsSendInput) (*sqsSendOutput, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(input.QueueURL),
		MessageBody: aws.String(input.MessageBody),
	}
	if input.MessageDeduplicationID != "" {
		in.MessageDeduplicationId = aws.String(input.MessageDeduplicationID)
	}
	if input.MessageGroupID != "" {
		in.MessageGroupId = aws.String(input.MessageGroupID)
	}

	out, err := c.client.SendMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	return &sqsSendOutput{MessageID: derefString(out.MessageId)}, nil
}

// ReceiveMessage long-polls the specified SQS queue for messages.
func (c *awsSQSClient) ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(input.QueueURL),
		MaxNumberOfMessages: input.MaxNumberOfMessages,
		WaitTimeSeconds:     input.WaitTimeSeconds,
		VisibilityTimeout:   input.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}

	messages := make([]sqsReceivedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		messages = append(messages, sqsReceivedMessage{
			MessageID:     derefString(m.MessageId),
			ReceiptHandle: derefString(m.ReceiptHandle),
			Body:          derefString(m.Body),
			ReceiveCount:  count,
		})
	}
	return &sqsReceiveOutput{Messages: messages}, nil
}

// DeleteMessage deletes a message from the specified SQS queue.
func (c *awsSQSClient) DeleteMessage(ctx context.Context, input *sqsDeleteInput) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(input.QueueURL),
		ReceiptHandle: aws.String(input.ReceiptHandle),
	})
	return err
}

// ChangeMessageVisibility changes the visibility timeout of a message.
func (c *awsSQSClient) ChangeMessageVisibility(ctx context.Context, input *sqsChangeVisibilityInput) error {
	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(input.QueueURL),
		ReceiptHandle:     aws.String(input.ReceiptHandle),
		VisibilityTimeout: input.VisibilityTimeout,
	})
	return err
}

// derefString safely dereferences a string pointer, returning "" for nil.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
