package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime/trace"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

type APIFunction func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error)

const defaultTimeout = 9500 * time.Millisecond

func header(request events.APIGatewayProxyRequest, name string) (string, bool) {
	if value, found := request.Headers[name]; found {
		return value, true
	}
	for key, value := range request.Headers {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}

func AuthMiddleware(function APIFunction) APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		expectedToken := os.Getenv("AUTH_KEY")
		if expectedToken == "" {
			return Response(http.StatusUnauthorized, "Unauthorized")
		}
		expectedToken = fmt.Sprintf("Bearer %s", expectedToken)
		token, tokenFound := header(request, "authorization")
		if !tokenFound || token != expectedToken {
			return Response(http.StatusUnauthorized, "Unauthorized")
		}

		return function(ctx, request)
	}
}

// EnvEnabled reports whether ENV is set and not listed in ENV_DISABLE.
func EnvEnabled() bool {
	currentEnv := os.Getenv("ENV")
	disabledEnvs := os.Getenv("ENV_DISABLE")
	return currentEnv != "" && !(disabledEnvs != "" && slices.Contains(strings.Split(disabledEnvs, ","), currentEnv))
}

func CheckEnvMiddleware(function APIFunction) APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if !EnvEnabled() {
			return Response(http.StatusNotFound, "Not Found")
		}

		return function(ctx, request)
	}
}

func ProfilingMiddleware(function APIFunction, filename string) APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if os.Getenv("PROFILING") == "1" && os.Getenv("ENV") == "LOCAL" {
			stop := startTrace(filename)
			defer stop()
		}

		return function(ctx, request)
	}
}

func startTrace(filename string) (stop func()) {
	path := os.Getenv("PROFILING_PATH")
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	filename = path + filename + ".out"
	f, err := os.Create(filename)
	if err != nil {
		zap.L().Warn("Could not create trace profile", zap.String("file", filename), zap.Error(err))
		return func() {}
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		zap.L().Warn("Could not start trace profile", zap.String("file", filename), zap.Error(err))
		return func() {}
	}
	zap.L().Debug("Tracing on", zap.String("file", filename))
	return func() {
		trace.Stop()
		f.Close()
	}
}

// Timeout reads FUNCTION_TIMEOUT_MS, keeping the handler under the gateway limit by default.
func Timeout() time.Duration {
	if raw := os.Getenv("FUNCTION_TIMEOUT_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultTimeout
}

func TimeoutMiddleware(function APIFunction) APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, Timeout())
		defer cancel()

		type result struct {
			Response *events.APIGatewayProxyResponse
			Error    error
		}

		resultChan := make(chan result, 1)

		go func() {
			response, err := function(timeoutCtx, request)
			resultChan <- result{
				Response: response,
				Error:    err,
			}
		}()

		select {
		case res := <-resultChan:
			return res.Response, res.Error
		case <-timeoutCtx.Done():
			return Response(http.StatusGatewayTimeout, "Request timed out")
		}
	}
}

func ResponseWithHeaders(statusCode int, body string, headers map[string]string) (*events.APIGatewayProxyResponse, error) {
	return &events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers:    headers,
	}, nil
}

func Response(statusCode int, body string) (*events.APIGatewayProxyResponse, error) {
	return ResponseWithHeaders(statusCode, body, nil)
}

func JsonResponse(statusCode int, data any) (*events.APIGatewayProxyResponse, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		zap.L().Error("Error marshalling JSON response", zap.Error(err))
		return Response(http.StatusInternalServerError, "Internal Error")
	}
	return ResponseWithHeaders(statusCode, string(jsonData), map[string]string{
		"Content-Type": "application/json",
	})
}

func logBodyAndError(statusCode int, body any, err error) {
	fields := []zap.Field{zap.Int("status", statusCode), zap.Any("body", body)}
	switch {
	case err != nil:
		zap.L().Error("Request failed", append(fields, zap.Error(err))...)
	case statusCode >= http.StatusBadRequest:
		zap.L().Warn("Request rejected", fields...)
	default:
		zap.L().Info("Request handled", fields...)
	}
}

func LogAndResponse(statusCode int, body string, err error) (*events.APIGatewayProxyResponse, error) {
	logBodyAndError(statusCode, body, err)
	return Response(statusCode, body)
}

func LogAndJsonResponse(statusCode int, body any, err error) (*events.APIGatewayProxyResponse, error) {
	logBodyAndError(statusCode, body, err)
	return JsonResponse(statusCode, body)
}
