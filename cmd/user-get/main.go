// Package main implements the user lookup Lambda handler.
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
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/otel"

	"notekeeper/internal/user"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// UserRepository defines the interface for retrieving users.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*user.UserItem, error)
	GetUserByEmail(ctx context.Context, email string) (*user.UserItem, error)
}

// userResponse is the JSON shape returned for a user.
type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// handler implements the user lookup logic.
type handler struct {
	repo UserRepository
}

// newHandler creates a new handler.
func newHandler(repo UserRepository) *handler {
	return &handler{repo: repo}
}

// handle processes a user lookup by ID or by email.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	tracer := otel.Tracer("notekeeper-user-get")
	ctx, span := tracer.Start(ctx, "UserGetHandler")
	defer span.End()

	id := request.QueryStringParameters["id"]
	email := strings.ToLower(strings.TrimSpace(request.QueryStringParameters["email"]))

	var u *user.UserItem
	var err error
	switch {
	case id != "" && email == "":
		u, err = h.repo.GetUser(ctx, id)
	case email != "" && id == "":
		u, err = h.repo.GetUserByEmail(ctx, email)
	default:
		return errorResponse(400, "exactly one of id or email is required"), nil
	}

	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return errorResponse(404, "user not found"), nil
		}
		logger.ErrorContext(ctx, "Failed to look up user",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to look up user"), nil
	}

	return jsonResponse(200, userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}), nil
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
	repo := user.NewRepository(dynamoClient, tableName)

	h := newHandler(repo)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
