// Package main implements the note mutation Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
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

// minTagLength is the shortest tag accepted after normalization.
const minTagLength = 3

// NoteRepository defines the interface for note mutations.
type NoteRepository interface {
	CreateNote(ctx context.Context, userID, title, content string, deadline time.Time) (*note.NoteItem, error)
	UpdateContent(ctx context.Context, noteID string, title, content *string) (*note.NoteItem, error)
	Delete(ctx context.Context, noteID string) (*note.NoteItem, bool, error)
	AddTag(ctx context.Context, noteID, userID, tag string) (*note.NoteItem, error)
}

// noteSetRequest is the JSON request body. Action selects the mutation;
// the other fields apply per action.
type noteSetRequest struct {
	Action   string  `json:"action"`
	UserID   string  `json:"userId"`
	NoteID   string  `json:"noteId"`
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Deadline string  `json:"deadline"`
	Tag      string  `json:"tag"`
}

// noteResponse is the JSON shape returned for a note.
type noteResponse struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Deadline  string   `json:"deadline"`
	Tags      []string `json:"tags"`
	Version   int      `json:"version"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// handler implements the note mutation logic.
type handler struct {
	repo    NoteRepository
	cleanup tagcleanup.TagCleanupPublisher
}

// newHandler creates a new handler.
func newHandler(repo NoteRepository, cleanup tagcleanup.TagCleanupPublisher) *handler {
	return &handler{
		repo:    repo,
		cleanup: cleanup,
	}
}

// handle dispatches a note mutation request.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	tracer := otel.Tracer("notekeeper-note-set")
	ctx, span := tracer.Start(ctx, "NoteSetHandler")
	defer span.End()

	var req noteSetRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(400, "request body must be JSON"), nil
	}

	switch req.Action {
	case "create":
		return h.create(ctx, req), nil
	case "update":
		return h.update(ctx, req), nil
	case "delete":
		return h.delete(ctx, req), nil
	case "addTag":
		return h.addTag(ctx, req), nil
	default:
		return errorResponse(400, "action must be one of create, update, delete, addTag"), nil
	}
}

func (h *handler) create(ctx context.Context, req noteSetRequest) events.APIGatewayProxyResponse {
	if req.UserID == "" {
		return errorResponse(400, "userId is required")
	}
	title := ""
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	if title == "" {
		return errorResponse(400, "title is required")
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}

	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return errorResponse(400, "deadline must be RFC 3339 or YYYY-MM-DD")
	}
	if deadline.Before(time.Now().UTC()) {
		return errorResponse(400, "deadline must not be in the past")
	}

	n, err := h.repo.CreateNote(ctx, req.UserID, title, content, deadline)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create note",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to create note")
	}

	logger.InfoContext(ctx, "Note created",
		slog.String("note_id", n.ID),
		slog.String("user_id", n.UserID),
	)
	return jsonResponse(201, transformNote(n))
}

func (h *handler) update(ctx context.Context, req noteSetRequest) events.APIGatewayProxyResponse {
	if req.NoteID == "" {
		return errorResponse(400, "noteId is required")
	}
	if req.Title == nil && req.Content == nil {
		return errorResponse(400, "at least one of title or content is required")
	}

	n, err := h.repo.UpdateContent(ctx, req.NoteID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, note.ErrNoteNotFound) {
			return errorResponse(404, "note not found")
		}
		logger.ErrorContext(ctx, "Failed to update note",
			slog.String("note_id", req.NoteID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to update note")
	}

	logger.InfoContext(ctx, "Note updated",
		slog.String("note_id", n.ID),
		slog.Int("version", n.Version),
	)
	return jsonResponse(200, transformNote(n))
}

func (h *handler) delete(ctx context.Context, req noteSetRequest) events.APIGatewayProxyResponse {
	if req.NoteID == "" {
		return errorResponse(400, "noteId is required")
	}

	n, deleted, err := h.repo.Delete(ctx, req.NoteID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete note",
			slog.String("note_id", req.NoteID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to delete note")
	}

	// Tag rows and version history are removed out of band; a failed
	// publish leaves them behind until a later cleanup, never a broken
	// delete.
	if deleted && h.cleanup != nil {
		if err := h.cleanup.PublishTagCleanup(ctx, n.UserID, n.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to publish note cleanup",
				slog.String("note_id", n.ID),
				slog.String("user_id", n.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	logger.InfoContext(ctx, "Note delete completed",
		slog.String("note_id", req.NoteID),
		slog.Bool("deleted", deleted),
	)
	return jsonResponse(200, map[string]bool{"deleted": deleted})
}

func (h *handler) addTag(ctx context.Context, req noteSetRequest) events.APIGatewayProxyResponse {
	if req.NoteID == "" || req.UserID == "" {
		return errorResponse(400, "noteId and userId are required")
	}
	if len(note.NormalizeTag(req.Tag)) < minTagLength {
		return errorResponse(400, "tag must be at least 3 characters")
	}

	n, err := h.repo.AddTag(ctx, req.NoteID, req.UserID, req.Tag)
	if err != nil {
		if errors.Is(err, note.ErrNoteNotFound) {
			return errorResponse(404, "note not found")
		}
		logger.ErrorContext(ctx, "Failed to tag note",
			slog.String("note_id", req.NoteID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to tag note")
	}

	return jsonResponse(200, transformNote(n))
}

// parseDeadline accepts an RFC 3339 timestamp or a bare date, which
// means midnight UTC that day.
func parseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// transformNote converts a NoteItem to the JSON response format.
func transformNote(n *note.NoteItem) noteResponse {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		Deadline:  note.FormatDeadline(n.Deadline),
		Tags:      tags,
		Version:   n.Version,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// jsonResponse creates a JSON API Gateway response.
func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(502, "failed to encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// errorResponse creates an error response.
func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
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
	queueURL := os.Getenv("TAG_CLEANUP_QUEUE_URL")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	dynamoClient := dynamodb.NewFromConfig(cfg)
	repo := note.NewRepository(dynamoClient, tableName)

	var cleanup tagcleanup.TagCleanupPublisher
	if queueURL != "" {
		cleanup = tagcleanup.NewSQSPublisher(sqs.NewFromConfig(cfg), queueURL)
	}

	h := newHandler(repo, cleanup)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
