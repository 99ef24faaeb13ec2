package newstore

import (
	"context"
	"fmt"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
)

type GraphQLQueryFunc func(ctx context.Context, url, authHeader, authToken, query string, variables map[string]any) (any, error)

const orderByExternalIDQuery = `
query ($externalId: String!) {
	orders(first: 1, filter: {externalId: {equalTo: $externalId}}) {
		edges {
			node {
				id
			}
		}
	}
}
`

type Client struct {
	url   string
	token string
	query GraphQLQueryFunc
}

func NewClient(cfg config.NewStore) *Client {
	return &Client{url: cfg.URL, token: cfg.Token, query: helpers.GraphQLQuery}
}

// WithQuery replaces the GraphQL transport.
func (c *Client) WithQuery(query GraphQLQueryFunc) *Client {
	c.query = query
	return c
}

func (c *Client) call(ctx context.Context, query string, variables map[string]any) (any, error) {
	if c.url == "" {
		return nil, fmt.Errorf("missing NewStore GraphQL url")
	}
	authToken := ""
	if c.token != "" {
		authToken = "Bearer " + c.token
	}
	resp, err := c.query(ctx, c.url, "Authorization", authToken, query, variables)
	if err != nil {
		return nil, err
	}
	respMap, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid NewStore query response, expected map, got: %v", resp)
	}
	if _, foundErrors := respMap["errors"]; foundErrors {
		return nil, fmt.Errorf("errors in NewStore query response: %v", respMap)
	}
	return respMap, nil
}

// OrderID returns the NewStore id of the order imported under externalID.
// Lookups are cached for the invocation carried by ctx.
func (c *Client) OrderID(ctx context.Context, externalID string) (string, error) {
	return app.GetOrSet(ctx, []any{"NewStore", "OrderID", externalID}, func() (string, error) {
		resp, err := c.call(ctx, orderByExternalIDQuery, map[string]any{"externalId": externalID})
		if err != nil {
			return "", fmt.Errorf("error querying order %s:\n>>> %w", externalID, err)
		}
		edges := helpers.Traverse(resp, []any{"data", "orders", "edges"}, []any{})
		if len(edges) == 0 {
			return "", fmt.Errorf("cannot find order %s", externalID)
		}
		id, err := helpers.TraverseWithError(edges, []any{0, "node", "id"}, "")
		if err != nil || id == "" {
			return "", fmt.Errorf("order %s has no id in NewStore response: %v", externalID, edges[0])
		}
		return id, nil
	})
}
