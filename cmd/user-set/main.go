// Package main implements the user creation Lambda handler.
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

// UserRepository defines the interface for creating users.
type UserRepository interface {
	CreateUser(ctx context.Context, name, email string) (*user.UserItem, error)
}

// createUserRequest is the JSON request body.
type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// userResponse is the JSON shape returned for a user.
type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// handler implements the user creation logic.
type handler struct {
	repo UserRepository
}

// newHandler creates a new handler.
func newHandler(repo UserRepository) *handler {
	return &handler{repo: repo}
}

// handle processes a create-user request.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	tracer := otel.Tracer("notekeeper-user-set")
	ctx, span := tracer.Start(ctx, "UserSetHandler")
	defer span.End()

	var req createUserRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(400, "request body must be JSON"), nil
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		return errorResponse(400, "name is required"), nil
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errorResponse(400, "a valid email is required"), nil
	}

	u, err := h.repo.CreateUser(ctx, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return errorResponse(409, "email is already registered"), nil
		}
		logger.ErrorContext(ctx, "Failed to create user",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		return errorResponse(502, "failed to create user"), nil
	}

	logger.InfoContext(ctx, "User created",
		slog.String("user_id", u.ID),
	)

	return jsonResponse(201, userResponse{
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
