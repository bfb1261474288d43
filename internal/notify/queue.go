package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"meterjob/internal/external"
	"meterjob/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueSender hands rendered emails to a delivery worker through an SQS
// queue instead of sending them directly.
type QueueSender struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

func NewQueueSender(client SQSSender, queueURL string, logger *slog.Logger) *QueueSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSender{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Send enqueues msg as JSON and returns the SQS message id.
func (q *QueueSender) Send(ctx context.Context, msg types.EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "email has no recipients", nil)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue sender: failed to marshal email: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if runID := types.GetRunID(ctx); runID != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			"run_id": {DataType: aws.String("String"), StringValue: aws.String(runID)},
		}
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("failed to enqueue email to %s", q.queueURL), err)
	}

	q.logger.InfoContext(ctx, "email enqueued",
		"subject", msg.Subject,
		"recipients", RedactAll(msg.To),
		"message_id", aws.ToString(out.MessageId),
	)
	return aws.ToString(out.MessageId), nil
}

var _ external.EmailProvider = (*QueueSender)(nil)
