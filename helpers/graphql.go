package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var graphQLClient = &http.Client{Timeout: 30 * time.Second}

// GraphQLQuery posts query and variables to url and returns the decoded JSON body.
// The auth header is only sent when both its name and token are set.
func GraphQLQuery(ctx context.Context, url string, authHeader string, authToken string, query string, variables map[string]any) (any, error) {
	requestBody, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling GraphQL request:\n>>> %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("error creating GraphQL query request:\n>>> %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if authHeader != "" && authToken != "" {
		request.Header.Set(authHeader, authToken)
	}

	response, err := graphQLClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("error requesting GraphQL query:\n>>> %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GraphQL query response:\n>>> %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response from GraphQL query: [%s] %s", response.Status, responseBody)
	}

	var decoded any
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		return nil, fmt.Errorf("invalid response format from GraphQL query: [%s] %s", response.Status, responseBody)
	}
	return decoded, nil
}
