// Package main implements the tag-cleanup SQS consumer Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/otel"

	"notekeeper/internal/note"
	"notekeeper/internal/tagcleanup"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// NoteRepository defines the interface for the cleanup operations.
type NoteRepository interface {
	DeleteTagEntries(ctx context.Context, userID, noteID string) (int, error)
	DeleteVersionHistory(ctx context.Context, noteID string) (int, error)
}

// handler implements the tag-cleanup SQS consumer logic.
type handler struct {
	repo NoteRepository
}

// newHandler creates a new handler.
func newHandler(repo NoteRepository) *handler {
	return &handler{repo: repo}
}

// handle processes an SQS event containing note cleanup messages.
func (h *handler) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	tracer := otel.Tracer("notekeeper-tag-cleanup")
	ctx, span := tracer.Start(ctx, "TagCleanupHandler")
	defer span.End()

	var failures []events.SQSBatchItemFailure

	for _, record := range event.Records {
		var msg tagcleanup.TagCleanupMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			logger.ErrorContext(ctx, "Failed to parse SQS message",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		if err := h.processNoteCleanup(ctx, msg.UserID, msg.NoteID); err != nil {
			logger.ErrorContext(ctx, "Failed to process note cleanup",
				slog.String("user_id", msg.UserID),
				slog.String("note_id", msg.NoteID),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	logger.InfoContext(ctx, "Note cleanup batch completed",
		slog.Int("total", len(event.Records)),
		slog.Int("failures", len(failures)),
	)

	return events.SQSEventResponse{
		BatchItemFailures: failures,
	}, nil
}

// processNoteCleanup removes the rows a deleted note left behind. Both
// passes are idempotent, so a retried message re-deletes nothing.
func (h *handler) processNoteCleanup(ctx context.Context, userID, noteID string) error {
	tagCount, err := h.repo.DeleteTagEntries(ctx, userID, noteID)
	if err != nil {
		return err
	}

	versionCount, err := h.repo.DeleteVersionHistory(ctx, noteID)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Note cleanup completed",
		slog.String("note_id", noteID),
		slog.Int("tag_rows", tagCount),
		slog.Int("version_rows", versionCount),
	)
	return nil
}

func main() {
	ctx := context.Background()

	tp, err := xrayconfig.NewTracerProvider(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize tracer provider", slog.String("error", err.Error()))
		panic(err)
	}
	otel.SetTracerProvider(tp)

	tableName := os.Getenv("TABLE_NAME")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	dynamoClient := dynamodb.NewFromConfig(cfg)
	repo := note.NewRepository(dynamoClient, tableName)

	h := newHandler(repo)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
