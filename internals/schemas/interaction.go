package schemas

import (
	z "github.com/Oudwins/zog"
)

type InteractionMode string

const (
	InteractionModeComment InteractionMode = "comment"
	InteractionModePost    InteractionMode = "post"
)

var InteractionModeSchema = z.StringLike[InteractionMode]().OneOf([]InteractionMode{
	InteractionModeComment,
	InteractionModePost,
}).Required()

// Interaction records a single irreversible Reddit action tied to a product.
// The backend is authoritative and enforces uniqueness per (product_id, mode);
// a record is created once and never mutated.
type Interaction struct {
	ProductID     string          `json:"product_id"`
	Mode          InteractionMode `json:"mode"`
	Status        string          `json:"status,omitempty"`
	DryRun        bool            `json:"dry_run"`
	SubredditName string          `json:"subreddit_name,omitempty"`

	// Comment variant.
	CommentID   string `json:"comment_id,omitempty"`
	CommentURL  string `json:"comment_url,omitempty"`
	CommentedAt string `json:"commented_at,omitempty"`

	// Post variant.
	RedditPostID  string `json:"reddit_post_id,omitempty"`
	RedditPostURL string `json:"reddit_post_url,omitempty"`
	SubmittedAt   string `json:"submitted_at,omitempty"`
}
