package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

type SubmitOptions struct {
	DryRun    bool
	Subreddit string
}

func interactionPath(productID string, mode schemas.InteractionMode) string {
	return "/api/reddit/product/" + url.PathEscape(productID) + "/" + string(mode)
}

// Interaction looks up the recorded Reddit action for a product. A 404 maps
// to ErrNotFound, meaning nothing has been submitted yet.
func (c *Client) Interaction(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, interactionPath(productID, mode), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var payload schemas.Interaction
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

// SubmitInteraction performs the one-time Reddit publish for a product.
// The backend enforces uniqueness per (product_id, mode).
func (c *Client) SubmitInteraction(ctx context.Context, productID string, mode schemas.InteractionMode, opts SubmitOptions) (*schemas.Interaction, error) {
	path := interactionPath(productID, mode) + "?dry_run=" + strconv.FormatBool(opts.DryRun)
	if opts.Subreddit != "" {
		path += "&subreddit=" + url.QueryEscape(opts.Subreddit)
	}
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, responseError(resp)
	}

	var payload schemas.Interaction
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}
