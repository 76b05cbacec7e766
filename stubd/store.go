package stubd

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

//go:embed migrations/*.sql
var migrations embed.FS

type store struct {
	db *sql.DB
}

func newStore(dbPath string) (*store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) CreateTask(ctx context.Context, task schemas.Task) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (task_id, task_type, status, progress, stage, message, created_at, completed_at, error, donation_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, task.TaskID, task.TaskType, task.Status, progressValue(task.Progress), nullIfEmpty(task.Stage), nullIfEmpty(task.Message),
		task.CreatedAt, nullIfEmpty(task.CompletedAt), nullIfEmpty(task.Error), task.DonationID)
	return err
}

func (s *store) ApplyPatch(ctx context.Context, taskID string, patch schemas.TaskPatch) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	patch.Apply(task)
	_, err = s.db.ExecContext(ctx, `
UPDATE tasks
SET status = ?, progress = ?, stage = ?, message = ?, completed_at = ?, error = ?
WHERE task_id = ?
`, task.Status, progressValue(task.Progress), nullIfEmpty(task.Stage), nullIfEmpty(task.Message),
		nullIfEmpty(task.CompletedAt), nullIfEmpty(task.Error), taskID)
	return err
}

func (s *store) GetTask(ctx context.Context, taskID string) (*schemas.Task, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT task_id, task_type, status, progress, stage, message, created_at, completed_at, error, donation_id
FROM tasks
WHERE task_id = ?
`, taskID)
	return scanTask(row)
}

func (s *store) ListTasks(ctx context.Context) ([]schemas.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, task_type, status, progress, stage, message, created_at, completed_at, error, donation_id
FROM tasks
ORDER BY created_at
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []schemas.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*schemas.Task, error) {
	var task schemas.Task
	var progress sql.NullFloat64
	var stage, message, completedAt, errMsg sql.NullString
	if err := row.Scan(&task.TaskID, &task.TaskType, &task.Status, &progress, &stage, &message,
		&task.CreatedAt, &completedAt, &errMsg, &task.DonationID); err != nil {
		return nil, err
	}
	if progress.Valid {
		task.Progress = &progress.Float64
	}
	task.Stage = stage.String
	task.Message = message.String
	task.CompletedAt = completedAt.String
	task.Error = errMsg.String
	return &task, nil
}

func (s *store) CreateProduct(ctx context.Context, product schemas.Product) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO products (product_id, theme_id, image_url, product_url, reddit_post_id, reddit_post_title, subreddit_name, created_at, donation_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, product.ProductID, nullIfEmpty(product.ThemeID), nullIfEmpty(product.ImageURL), nullIfEmpty(product.ProductURL),
		nullIfEmpty(product.RedditPostID), nullIfEmpty(product.RedditPostTitle), nullIfEmpty(product.SubredditName),
		product.CreatedAt, product.DonationID)
	return err
}

func (s *store) ListProducts(ctx context.Context) ([]schemas.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT product_id, theme_id, image_url, product_url, reddit_post_id, reddit_post_title, subreddit_name, created_at, donation_id
FROM products
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []schemas.Product{}
	for rows.Next() {
		var product schemas.Product
		var themeID, imageURL, productURL, redditPostID, redditPostTitle, subreddit sql.NullString
		if err := rows.Scan(&product.ProductID, &themeID, &imageURL, &productURL,
			&redditPostID, &redditPostTitle, &subreddit, &product.CreatedAt, &product.DonationID); err != nil {
			return nil, err
		}
		product.ThemeID = themeID.String
		product.ImageURL = imageURL.String
		product.ProductURL = productURL.String
		product.RedditPostID = redditPostID.String
		product.RedditPostTitle = redditPostTitle.String
		product.SubredditName = subreddit.String
		products = append(products, product)
	}
	return products, rows.Err()
}

func (s *store) GetInteraction(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT product_id, mode, status, dry_run, subreddit_name, comment_id, comment_url, commented_at, reddit_post_id, reddit_post_url, submitted_at
FROM interactions
WHERE product_id = ? AND mode = ?
`, productID, mode)

	var record schemas.Interaction
	var subreddit, commentID, commentURL, commentedAt, postID, postURL, submittedAt sql.NullString
	var dryRun int
	if err := row.Scan(&record.ProductID, &record.Mode, &record.Status, &dryRun, &subreddit,
		&commentID, &commentURL, &commentedAt, &postID, &postURL, &submittedAt); err != nil {
		return nil, err
	}
	record.DryRun = dryRun != 0
	record.SubredditName = subreddit.String
	record.CommentID = commentID.String
	record.CommentURL = commentURL.String
	record.CommentedAt = commentedAt.String
	record.RedditPostID = postID.String
	record.RedditPostURL = postURL.String
	record.SubmittedAt = submittedAt.String
	return &record, nil
}

// CreateInteraction inserts the record once per (product_id, mode).
// A duplicate insert returns the already-recorded row, which is what makes
// the endpoint idempotent for the client-side guard.
func (s *store) CreateInteraction(ctx context.Context, record schemas.Interaction) (*schemas.Interaction, error) {
	dryRun := 0
	if record.DryRun {
		dryRun = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO interactions (product_id, mode, status, dry_run, subreddit_name, comment_id, comment_url, commented_at, reddit_post_id, reddit_post_url, submitted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, record.ProductID, record.Mode, record.Status, dryRun, nullIfEmpty(record.SubredditName),
		nullIfEmpty(record.CommentID), nullIfEmpty(record.CommentURL), nullIfEmpty(record.CommentedAt),
		nullIfEmpty(record.RedditPostID), nullIfEmpty(record.RedditPostURL), nullIfEmpty(record.SubmittedAt))
	if err != nil {
		return nil, err
	}
	return s.GetInteraction(ctx, record.ProductID, record.Mode)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func progressValue(progress *float64) any {
	if progress == nil {
		return nil
	}
	return *progress
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
