// Package main implements the note query Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strconv"
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
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// NoteRepository defines the interface for note reads.
type NoteRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*note.NoteItem, error)
	DueBefore(ctx context.Context, userID string, date time.Time) ([]*note.NoteItem, error)
	DueAfter(ctx context.Context, userID string, date time.Time) ([]*note.NoteItem, error)
	FindByTag(ctx context.Context, userID, tag string) ([]*note.NoteItem, error)
	GetVersion(ctx context.Context, noteID string, version int) (*note.NoteVersionItem, error)
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

// versionResponse is the JSON shape returned for an archived version.
type versionResponse struct {
	NoteID     string   `json:"noteId"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Deadline   string   `json:"deadline"`
	Tags       []string `json:"tags"`
	Version    int      `json:"version"`
	ArchivedAt string   `json:"archivedAt"`
}

// handler implements the note query logic.
type handler struct {
	repo NoteRepository
}

// newHandler creates a new handler.
func newHandler(repo NoteRepository) *handler {
	return &handler{repo: repo}
}

// handle dispatches a note query request.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	tracer := otel.Tracer("notekeeper-note-query")
	ctx, span := tracer.Start(ctx, "NoteQueryHandler")
	defer span.End()

	params := request.QueryStringParameters
	action := params["action"]
	userID := params["userId"]

	switch action {
	case "list":
		if userID == "" {
			return errorResponse(400, "userId is required"), nil
		}
		notes, err := h.repo.ListByUser(ctx, userID)
		return h.listResult(ctx, userID, notes, err), nil

	case "dueBefore", "dueAfter":
		if userID == "" {
			return errorResponse(400, "userId is required"), nil
		}
		date, err := parseDeadline(params["date"])
		if err != nil {
			return errorResponse(400, "date must be RFC 3339 or YYYY-MM-DD"), nil
		}
		var notes []*note.NoteItem
		if action == "dueBefore" {
			notes, err = h.repo.DueBefore(ctx, userID, date)
		} else {
			notes, err = h.repo.DueAfter(ctx, userID, date)
		}
		return h.listResult(ctx, userID, notes, err), nil

	case "byTag":
		if userID == "" {
			return errorResponse(400, "userId is required"), nil
		}
		if note.NormalizeTag(params["tag"]) == "" {
			return errorResponse(400, "tag is required"), nil
		}
		notes, err := h.repo.FindByTag(ctx, userID, params["tag"])
		return h.listResult(ctx, userID, notes, err), nil

	case "version":
		noteID := params["noteId"]
		if noteID == "" {
			return errorResponse(400, "noteId is required"), nil
		}
		version, err := strconv.Atoi(params["version"])
		if err != nil || version < 1 {
			return errorResponse(400, "version must be a positive integer"), nil
		}
		v, err := h.repo.GetVersion(ctx, noteID, version)
		if err != nil {
			if errors.Is(err, note.ErrVersionNotFound) {
				return errorResponse(404, "version not found"), nil
			}
			logger.ErrorContext(ctx, "Failed to get note version",
				slog.String("note_id", noteID),
				slog.Int("version", version),
				slog.String("error", err.Error()),
			)
			return errorResponse(502, "failed to get note version"), nil
		}
		return jsonResponse(200, transformVersion(v)), nil

	default:
		return errorResponse(400, "action must be one of list, dueBefore, dueAfter, byTag, version"), nil
	}
}

// listResult renders a note list query outcome.
func (h *handler) listResult(ctx context.Context, userID string, notes []*note.NoteItem, err error) events.APIGatewayProxyResponse {
	if err != nil {
		logger.ErrorContext(ctx, "Failed to query notes",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to query notes")
	}

	list := make([]noteResponse, len(notes))
	for i, n := range notes {
		list[i] = transformNote(n)
	}
	return jsonResponse(200, map[string]any{"notes": list})
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

// transformVersion converts a NoteVersionItem to the JSON response
// format.
func transformVersion(v *note.NoteVersionItem) versionResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return versionResponse{
		NoteID:     v.NoteID,
		Title:      v.Title,
		Content:    v.Content,
		Deadline:   note.FormatDeadline(v.Deadline),
		Tags:       tags,
		Version:    v.Version,
		ArchivedAt: v.ArchivedAt.UTC().Format(time.RFC3339),
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
	repo := note.NewRepository(dynamoClient, tableName)

	h := newHandler(repo)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
