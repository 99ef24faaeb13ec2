package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/queries"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/types"
)

const apiVersion = "2025-04"

type GraphQLQueryFunc func(ctx context.Context, url, authHeader, authToken, query string, variables map[string]any) (any, error)

var graphQLQueryCacheKey = []any{"Shopify", "GraphQLQuery"}

// WithGraphQLQuery swaps the GraphQL transport for the invocation carried by ctx.
func WithGraphQLQuery(ctx context.Context, query GraphQLQueryFunc) (reset func()) {
	return app.SetCacheValue(ctx, graphQLQueryCacheKey, query)
}

type Query[T any] struct{}

func (f *Query[T]) CallGeneric(ctx context.Context, query queries.ShopifyQuery, variables map[string]any) (any, error) {
	domain := os.Getenv("SHOPIFY_DOMAIN")
	token := os.Getenv("SHOPIFY_ADMIN_API_ACCESS_TOKEN")
	if domain == "" || token == "" {
		return nil, fmt.Errorf("missing necessary environment variables for Shopify Admin API call")
	}
	graphQLQuery, _ := app.GetCacheValue[GraphQLQueryFunc](ctx, graphQLQueryCacheKey, helpers.GraphQLQuery)
	url := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, apiVersion)
	resp, err := graphQLQuery(ctx, url, "X-Shopify-Access-Token", token, query.Query, variables)
	if err != nil {
		return nil, err
	}
	respMap, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid Shopify Admin API query response, expected map, got: %v", resp)
	}
	if _, foundErrors := respMap["errors"]; foundErrors {
		return nil, fmt.Errorf("errors in Shopify Admin API query response: %v", respMap)
	}
	data, dataOk := respMap["data"].(map[string]any)
	if !dataOk {
		return nil, fmt.Errorf("data map not found in Shopify Admin API query response: %v", respMap)
	}
	resultData, resultFound := data[query.ResultKey]
	if !resultFound {
		return nil, fmt.Errorf("result key not found in Shopify Admin API query response (%v): %v", query.ResultKey, respMap)
	}
	if resultData == nil {
		return nil, fmt.Errorf("empty response from Shopify Admin API query response (%v): %v", query.ResultKey, respMap)
	}
	return resultData, nil
}

func (f *Query[T]) Call(ctx context.Context, query queries.ShopifyQuery, variables map[string]any) (*T, error) {
	resultAny, err := f.CallGeneric(ctx, query, variables)
	if err != nil {
		return nil, err
	}
	resultJson, err := json.Marshal(resultAny)
	if err != nil {
		return nil, fmt.Errorf("error re-marshalling result from Shopify Admin API query response:\n>>> %v\n>>> %w", resultAny, err)
	}
	var result T
	decoder := json.NewDecoder(bytes.NewReader(resultJson))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding result into struct from Shopify Admin API query response:\n>>> %v\n>>> %w", string(resultJson), err)
	}
	return &result, nil
}

func OrderById(ctx context.Context, id string) (*types.Order, error) {
	return (&Query[types.Order]{}).Call(ctx, queries.Order, map[string]any{"id": id})
}
func OrderWithTransactionsById(ctx context.Context, id string) (*types.Order, error) {
	return (&Query[types.Order]{}).Call(ctx, queries.OrderWithTransactions, map[string]any{"id": id})
}
