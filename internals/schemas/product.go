package schemas

// Product is a generated artifact plus its originating Reddit post and
// pipeline run metadata. Read-only from this client's perspective.
type Product struct {
	ProductID       string `json:"product_id"`
	ThemeID         string `json:"theme_id,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	ProductURL      string `json:"product_url,omitempty"`
	RedditPostID    string `json:"reddit_post_id,omitempty"`
	RedditPostTitle string `json:"reddit_post_title,omitempty"`
	SubredditName   string `json:"subreddit_name,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	DonationID      int64  `json:"donation_id,omitempty"`
}
