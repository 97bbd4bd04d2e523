package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// LoadFile reads a CeterisParibus document from a JSON file.
func LoadFile(path string) (*CeterisParibus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file %s: %w", path, err)
	}
	return decode(data, path)
}

// Client fetches profile documents from an HTTP endpoint.
type Client struct {
	rest *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{rest: r}
}

// Fetch retrieves a CeterisParibus document from url.
func (c *Client) Fetch(url string) (*CeterisParibus, error) {
	resp, err := c.rest.R().
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch profile %s: status %d", url, resp.StatusCode())
	}
	return decode(resp.Body(), url)
}

func decode(data []byte, source string) (*CeterisParibus, error) {
	var doc CeterisParibus
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", source, err)
	}
	cp, err := New(doc.Label, doc.Result, doc.Observations)
	if err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", source, err)
	}
	log.Debug().
		Str("source", source).
		Str("label", cp.Label).
		Int("rows", len(cp.Result)).
		Int("observations", len(cp.Observations)).
		Msg("profile loaded")
	return cp, nil
}
