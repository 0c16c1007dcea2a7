// Package store persists scored articles with their category labels and
// geographic location codes. It runs on SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/dedup"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/pkg/i18n"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

// ErrArticleExists is returned by Insert when the URL is already stored.
var ErrArticleExists = errors.New("article already exists")

// Record is one article merged with the analysis of one prompt.
type Record struct {
	Article    sources.Article
	Analysis   analyzer.Result
	PromptID   string
	PromptName string
}

// Store provides article persistence.
type Store struct {
	db     *storage.DB
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Store and migrates the schema for the database driver.
func New(ctx context.Context, db *storage.DB) (*Store, error) {
	schema := sqliteSchema
	if db.DriverType() == storage.Postgres {
		schema = postgresSchema
	}
	if err := db.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("create article schema: %w", err)
	}
	return &Store{db: db, now: time.Now, logger: slog.Default()}, nil
}

// URLExists reports whether an article with this URL was stored.
func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	query, args, err := s.db.Builder().
		Select("1").From("articles").
		Where(sq.Eq{"url_key": dedup.NormalizeURL(url)}).
		Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check url: %w", err)
	}
	return true, nil
}

// RecentTitles returns titles of articles stored at or after since.
func (s *Store) RecentTitles(ctx context.Context, since time.Time) ([]string, error) {
	query, args, err := s.db.Builder().
		Select("title").From("articles").
		Where(sq.GtOrEq{"created_at": since.Unix()}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Insert stores a record with its categories and location codes in one
// transaction. A URL that is already stored yields ErrArticleExists.
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	a, r := rec.Article, rec.Analysis
	language := a.Language
	if language == "" {
		language = "en"
	}

	insert, args, err := s.db.Builder().Insert("articles").
		Columns(
			"url_key", "url", "title", "description", "author", "published_at",
			"url_to_image", "content", "language", "source_id", "source_name", "api_source",
			"uplift_score", "sentiment_positive", "sentiment_negative", "sentiment_neutral", "sentiment_confidence",
			"emotion_hope", "emotion_awe", "emotion_gratitude", "emotion_compassion", "emotion_relief", "emotion_joy",
			"source_credibility", "fact_checkable_claims", "evidence_quality",
			"controversy_level", "solution_focused", "age_appropriate", "truth_seeking",
			"geographical_impact_level", "reasoning", "analyzer_type", "overall_hopefulness",
			"prompt_id", "prompt_name", "created_at",
		).
		Values(
			dedup.NormalizeURL(a.URL), a.URL, a.Title, a.Description, a.Author, a.PublishedAt,
			a.URLToImage, a.Content, language, a.Source.ID, a.Source.Name, string(a.Provider),
			r.OverallHopefulness, boolInt(r.Sentiment == "positive"), boolInt(r.Sentiment == "negative"),
			boolInt(r.Sentiment == "neutral"), r.ConfidenceScore,
			r.Emotions.Hope, r.Emotions.Awe, r.Emotions.Gratitude, r.Emotions.Compassion, r.Emotions.Relief, r.Emotions.Joy,
			r.SourceCredibility, r.FactCheckableClaims, r.EvidenceQuality,
			r.ControversyLevel, r.SolutionFocused, r.AgeAppropriate, r.TruthSeeking,
			r.ImpactLevel, r.Reasoning, r.AnalyzerType, r.OverallHopefulness,
			rec.PromptID, rec.PromptName, s.now().Unix(),
		).
		Suffix("ON CONFLICT (url_key) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, insert, args...).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrArticleExists
			}
			return fmt.Errorf("insert article: %w", err)
		}
		for _, name := range r.Categories {
			if err := s.linkCategory(ctx, tx, id, name); err != nil {
				return err
			}
		}
		codes := r.LocationCodes
		if len(codes) == 0 {
			codes = []int{i18n.M49World}
		}
		for _, code := range codes {
			q, args, err := s.db.Builder().Insert("article_locations").
				Columns("article_id", "m49_code").Values(id, code).
				Suffix("ON CONFLICT DO NOTHING").ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("link location %d: %w", code, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) linkCategory(ctx context.Context, tx *sql.Tx, articleID int64, name string) error {
	q, args, err := s.db.Builder().Insert("categories").
		Columns("name").Values(name).
		Suffix("ON CONFLICT (name) DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("create category %q: %w", name, err)
	}

	q, args, err = s.db.Builder().Select("id").From("categories").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return err
	}
	var categoryID int64
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&categoryID); err != nil {
		return fmt.Errorf("find category %q: %w", name, err)
	}

	q, args, err = s.db.Builder().Insert("article_categories").
		Columns("article_id", "category_id").Values(articleID, categoryID).
		Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("link category %q: %w", name, err)
	}
	return nil
}

// Count returns the number of stored articles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n)
	return n, err
}
