// Package tagcleanup provides async cleanup of a deleted note's
// leftover rows via SQS.
package tagcleanup

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// TagCleanupPublisher publishes note cleanup requests to an async queue.
type TagCleanupPublisher interface {
	PublishTagCleanup(ctx context.Context, userID, noteID string) error
}

// TagCleanupMessage is the SQS message body for note cleanup requests.
// Deleting a note leaves its tag rows and version history behind; the
// consumer removes them out of band.
type TagCleanupMessage struct {
	UserID string `json:"userId"`
	NoteID string `json:"noteId"`
}

// SQSSender abstracts SQS send operations for dependency inversion.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes note cleanup requests to an SQS queue.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
}

// NewSQSPublisher creates a new SQSPublisher.
func NewSQSPublisher(client SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
	}
}

// PublishTagCleanup sends a note cleanup message to SQS.
func (p *SQSPublisher) PublishTagCleanup(ctx context.Context, userID, noteID string) error {
	msg := TagCleanupMessage{
		UserID: userID,
		NoteID: noteID,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	bodyStr := string(body)
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &bodyStr,
	})
	return err
}
