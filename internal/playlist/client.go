package playlist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 30 * time.Second

// Client fetches playlists over HTTP.
type Client struct {
	client *resty.Client
}

func NewClient(userAgent string) *Client {
	return &Client{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

// Fetch downloads the raw playlist body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("playlist returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	return resp.Body(), nil
}

// Load fetches and parses a playlist.
func (c *Client) Load(ctx context.Context, url string) (*Playlist, error) {
	data, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ResolveStreams returns the stream URLs listed in the playlist at url.
func (c *Client) ResolveStreams(ctx context.Context, url string) ([]string, error) {
	p, err := c.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.URLs(), nil
}
