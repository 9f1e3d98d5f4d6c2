package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/storage/models"
	"github.com/news-similarity/engine/pkg/logger"
)

// Client is the engine-owned persistent store: reference articles,
// entity resolutions, per-article histograms, the article-pair
// similarity memo, and comparison history.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ref_articles (
		id INTEGER PRIMARY KEY,
		title TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL,
		histogram TEXT,
		fetched_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ref_articles_title ON ref_articles(title);

	CREATE TABLE IF NOT EXISTS entity_refs (
		name TEXT PRIMARY KEY,
		article_ids TEXT NOT NULL,
		resolved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS article_similarity (
		id1 INTEGER NOT NULL,
		id2 INTEGER NOT NULL,
		similarity REAL NOT NULL,
		PRIMARY KEY (id1, id2)
	);

	CREATE TABLE IF NOT EXISTS comparisons (
		id TEXT PRIMARY KEY,
		feed_a TEXT NOT NULL,
		index_a INTEGER NOT NULL,
		feed_b TEXT NOT NULL,
		index_b INTEGER NOT NULL,
		what REAL,
		who REAL,
		whr REAL,
		distance REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comparisons_created ON comparisons(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// UpsertArticle inserts or refreshes a reference article. Upserts are
// idempotent so duplicate concurrent fetches are harmless.
func (c *Client) UpsertArticle(a *models.ReferenceArticle) error {
	query := `
		INSERT INTO ref_articles (id, title, content, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content
	`

	_, err := c.db.Exec(query, a.ID, a.Title, a.Content, a.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert reference article: %w", err)
	}

	logger.Debug("Reference article stored",
		zap.Int64("id", a.ID),
		zap.String("title", a.Title),
	)
	return nil
}

// GetArticleByID returns the stored article, or (nil, nil) when absent.
func (c *Client) GetArticleByID(id int64) (*models.ReferenceArticle, error) {
	return c.getArticle(`SELECT id, title, content, histogram, fetched_at
		FROM ref_articles WHERE id = ?`, id)
}

// GetArticleByTitle returns the stored article, or (nil, nil) when
// absent. Titles can change upstream, so callers fall back to id.
func (c *Client) GetArticleByTitle(title string) (*models.ReferenceArticle, error) {
	return c.getArticle(`SELECT id, title, content, histogram, fetched_at
		FROM ref_articles WHERE title = ?`, title)
}

func (c *Client) getArticle(query string, arg interface{}) (*models.ReferenceArticle, error) {
	var a models.ReferenceArticle
	var histogram sql.NullString
	var fetchedAt int64

	err := c.db.QueryRow(query, arg).Scan(&a.ID, &a.Title, &a.Content, &histogram, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference article: %w", err)
	}

	a.FetchedAt = time.Unix(fetchedAt, 0)
	if histogram.Valid {
		if err := json.Unmarshal([]byte(histogram.String), &a.Histogram); err != nil {
			return nil, fmt.Errorf("failed to decode histogram: %w", err)
		}
	}

	return &a, nil
}

// PutHistogram persists the lazily computed entity histogram.
func (c *Client) PutHistogram(id int64, histogram map[string]float64) error {
	data, err := json.Marshal(histogram)
	if err != nil {
		return fmt.Errorf("failed to encode histogram: %w", err)
	}

	_, err = c.db.Exec(`UPDATE ref_articles SET histogram = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("failed to store histogram: %w", err)
	}

	return nil
}

// GetEntityRefs returns the persisted resolution for a name. The
// second value distinguishes "resolved to nothing" from "never
// resolved".
func (c *Client) GetEntityRefs(name string) ([]int64, bool, error) {
	var encoded string

	err := c.db.QueryRow(`SELECT article_ids FROM entity_refs WHERE name = ?`, name).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entity refs: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, false, fmt.Errorf("failed to decode entity refs: %w", err)
	}

	return ids, true, nil
}

// PutEntityRefs persists a resolution, empty lists included.
func (c *Client) PutEntityRefs(name string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode entity refs: %w", err)
	}

	query := `
		INSERT INTO entity_refs (name, article_ids, resolved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			article_ids = excluded.article_ids,
			resolved_at = excluded.resolved_at
	`

	if _, err := c.db.Exec(query, name, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store entity refs: %w", err)
	}

	logger.Debug("Entity resolution stored",
		zap.String("name", name),
		zap.Int("articles", len(ids)),
	)
	return nil
}

// GetSimilarity returns the memoized article-pair similarity. Callers
// pass ids in canonical (id1 <= id2) order.
func (c *Client) GetSimilarity(id1, id2 int64) (float64, bool, error) {
	var sim float64

	err := c.db.QueryRow(`SELECT similarity FROM article_similarity
		WHERE id1 = ? AND id2 = ?`, id1, id2).Scan(&sim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get similarity: %w", err)
	}

	return sim, true, nil
}

func (c *Client) PutSimilarity(id1, id2 int64, sim float64) error {
	query := `
		INSERT INTO article_similarity (id1, id2, similarity)
		VALUES (?, ?, ?)
		ON CONFLICT(id1, id2) DO UPDATE SET similarity = excluded.similarity
	`

	if _, err := c.db.Exec(query, id1, id2, sim); err != nil {
		return fmt.Errorf("failed to store similarity: %w", err)
	}

	return nil
}

func (c *Client) InsertComparison(cmp *models.Comparison) error {
	query := `
		INSERT INTO comparisons (id, feed_a, index_a, feed_b, index_b,
			what, who, whr, distance, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		cmp.ID,
		cmp.FeedA,
		cmp.IndexA,
		cmp.FeedB,
		cmp.IndexB,
		cmp.What,
		cmp.Who,
		cmp.Where,
		cmp.Distance,
		cmp.LatencyMS,
		cmp.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert comparison: %w", err)
	}

	logger.Info("Comparison recorded",
		zap.String("comparison_id", cmp.ID),
		zap.String("feed_a", cmp.FeedA),
		zap.String("feed_b", cmp.FeedB),
	)
	return nil
}

func (c *Client) GetComparisons(limit int) ([]models.Comparison, error) {
	query := `
		SELECT id, feed_a, index_a, feed_b, index_b, what, who, whr,
			distance, latency_ms, created_at
		FROM comparisons
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get comparisons: %w", err)
	}
	defer rows.Close()

	var out []models.Comparison
	for rows.Next() {
		var cmp models.Comparison
		var createdAt int64

		err := rows.Scan(&cmp.ID, &cmp.FeedA, &cmp.IndexA, &cmp.FeedB, &cmp.IndexB,
			&cmp.What, &cmp.Who, &cmp.Where, &cmp.Distance, &cmp.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		cmp.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, cmp)
	}

	return out, rows.Err()
}
