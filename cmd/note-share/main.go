// Package main implements the note sharing Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/otel"

	"notekeeper/internal/note"
	"notekeeper/internal/share"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// ShareRepository defines the interface for share operations.
type ShareRepository interface {
	Share(ctx context.Context, ownerID, noteID, sharedWith string) (*share.SharedNoteItem, error)
	SharedWithMe(ctx context.Context, userID string) ([]*note.NoteItem, error)
	AccessList(ctx context.Context, noteID string) ([]string, error)
}

// shareRequest is the JSON request body. Action selects the operation.
type shareRequest struct {
	Action     string `json:"action"`
	NoteID     string `json:"noteId"`
	UserID     string `json:"userId"`
	SharedWith string `json:"sharedWith"`
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

// handler implements the note sharing logic.
type handler struct {
	repo ShareRepository
}

// newHandler creates a new handler.
func newHandler(repo ShareRepository) *handler {
	return &handler{repo: repo}
}

// handle dispatches a share request.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	tracer := otel.Tracer("notekeeper-note-share")
	ctx, span := tracer.Start(ctx, "NoteShareHandler")
	defer span.End()

	var req shareRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(400, "request body must be JSON"), nil
	}

	switch req.Action {
	case "share":
		return h.share(ctx, req), nil
	case "sharedWithMe":
		return h.sharedWithMe(ctx, req), nil
	case "accessList":
		return h.accessList(ctx, req), nil
	default:
		return errorResponse(400, "action must be one of share, sharedWithMe, accessList"), nil
	}
}

func (h *handler) share(ctx context.Context, req shareRequest) events.APIGatewayProxyResponse {
	if req.UserID == "" || req.NoteID == "" || req.SharedWith == "" {
		return errorResponse(400, "userId, noteId and sharedWith are required")
	}

	s, err := h.repo.Share(ctx, req.UserID, req.NoteID, req.SharedWith)
	if err != nil {
		if errors.Is(err, note.ErrNoteNotFound) {
			return errorResponse(404, "note not found")
		}
		logger.ErrorContext(ctx, "Failed to share note",
			slog.String("note_id", req.NoteID),
			slog.String("shared_with", req.SharedWith),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to share note")
	}

	logger.InfoContext(ctx, "Note shared",
		slog.String("note_id", s.NoteID),
		slog.String("shared_by", s.SharedBy),
		slog.String("shared_with", s.SharedWith),
	)

	return jsonResponse(201, map[string]string{
		"noteId":     s.NoteID,
		"sharedBy":   s.SharedBy,
		"sharedWith": s.SharedWith,
		"createdAt":  s.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *handler) sharedWithMe(ctx context.Context, req shareRequest) events.APIGatewayProxyResponse {
	if req.UserID == "" {
		return errorResponse(400, "userId is required")
	}

	notes, err := h.repo.SharedWithMe(ctx, req.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list shared notes",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to list shared notes")
	}

	list := make([]noteResponse, len(notes))
	for i, n := range notes {
		list[i] = transformNote(n)
	}
	return jsonResponse(200, map[string]any{"notes": list})
}

func (h *handler) accessList(ctx context.Context, req shareRequest) events.APIGatewayProxyResponse {
	if req.NoteID == "" {
		return errorResponse(400, "noteId is required")
	}

	users, err := h.repo.AccessList(ctx, req.NoteID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list note access",
			slog.String("note_id", req.NoteID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to list note access")
	}

	if users == nil {
		users = []string{}
	}
	return jsonResponse(200, map[string]any{"sharedWith": users})
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

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	dynamoClient := dynamodb.NewFromConfig(cfg)
	notes := note.NewRepository(dynamoClient, tableName)
	repo := share.NewRepository(dynamoClient, tableName, notes)

	h := newHandler(repo)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
