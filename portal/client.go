package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"context"

	"github.com/sheetstruct/sheetstruct/schema"
)

var ErrUnexpectedResponse = errors.New("unexpected response code")

// Client talks to a real portal over HTTP with bearer-token auth. Schemas
// and the super-type map are fetched once and cached for the client's
// lifetime.
type Client struct {
	APIKey string
	Server string

	http http.Client

	mu         sync.Mutex
	schemas    map[string]map[string]any
	superTypes map[string][]string
}

func NewClient(apikey, server string) (*Client, error) {
	client := &Client{
		APIKey: apikey,
		Server: server,
	}
	return client, nil
}

func (c *Client) GetSchema(ctx context.Context, typeName string) (map[string]any, error) {
	schemas, err := c.getSchemas(ctx)
	if err != nil {
		return nil, err
	}
	return schemas[schema.TypeName(typeName)], nil
}

func (c *Client) GetObject(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formatURL(path), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	out := &Response{Status: res.StatusCode}
	if out.OK() {
		if err := json.NewDecoder(res.Body).Decode(&out.Body); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) GetSuperTypeMap(ctx context.Context) (map[string][]string, error) {
	c.mu.Lock()
	cached := c.superTypes
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	schemas, err := c.getSchemas(ctx)
	if err != nil {
		return nil, err
	}
	m := schema.SuperTypeMap(schemas)

	c.mu.Lock()
	c.superTypes = m
	c.mu.Unlock()
	return m, nil
}

func (c *Client) getSchemas(ctx context.Context) (map[string]map[string]any, error) {
	c.mu.Lock()
	cached := c.schemas
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formatURL("/profiles/"), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET /profiles/ -> %d", ErrUnexpectedResponse, res.StatusCode)
	}

	var schemas map[string]map[string]any
	if err := json.NewDecoder(res.Body).Decode(&schemas); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.schemas = schemas
	c.mu.Unlock()
	return schemas, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
}

func (c *Client) formatURL(path string) string {
	return fmt.Sprintf("%s%s", c.Server, path)
}
