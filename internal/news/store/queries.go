package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/pkg/i18n"
)

// StoredArticle is a persisted article with its links resolved.
type StoredArticle struct {
	ID                 int64             `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Author             string            `json:"author"`
	PublishedAt        string            `json:"publishedAt"`
	SourceName         string            `json:"source_name"`
	APISource          string            `json:"api_source"`
	Language           string            `json:"language"`
	UpliftScore        float64           `json:"uplift_score"`
	Sentiment          string            `json:"sentiment"`
	Confidence         float64           `json:"sentiment_confidence"`
	Emotions           analyzer.Emotions `json:"emotions"`
	ImpactLevel        string            `json:"geographical_impact_level"`
	LocationCodes      []int             `json:"geographical_impact_m49_codes"`
	LocationNames      []string          `json:"geographical_impact_location_names"`
	Categories         []string          `json:"categories"`
	Reasoning          string            `json:"reasoning"`
	OverallHopefulness float64           `json:"overall_hopefulness"`
	PromptID           string            `json:"prompt_id"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Filter narrows List. Empty fields do not filter.
type Filter struct {
	Categories   []string
	ImpactLevels []string
	Limit        int
}

const defaultListLimit = 50

// List returns the most recently stored articles matching f.
func (s *Store) List(ctx context.Context, f Filter) ([]StoredArticle, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}

	b := s.db.Builder().Select(
		"id", "title", "description", "url", "author", "published_at", "source_name", "api_source", "language",
		"uplift_score", "sentiment_positive", "sentiment_negative", "sentiment_confidence",
		"emotion_hope", "emotion_awe", "emotion_gratitude", "emotion_compassion", "emotion_relief", "emotion_joy",
		"geographical_impact_level", "reasoning", "overall_hopefulness", "prompt_id", "created_at",
	).From("articles")

	if len(f.Categories) > 0 {
		sub, subArgs, err := sq.Select("ac.article_id").
			From("article_categories ac").
			Join("categories c ON c.id = ac.category_id").
			Where(sq.Eq{"c.name": f.Categories}).ToSql()
		if err != nil {
			return nil, err
		}
		b = b.Where("id IN ("+sub+")", subArgs...)
	}
	if len(f.ImpactLevels) > 0 {
		b = b.Where(sq.Eq{"geographical_impact_level": f.ImpactLevels})
	}

	query, args, err := b.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var (
		out   []StoredArticle
		ids   []int64
		index = map[int64]int{}
	)
	for rows.Next() {
		var (
			a        StoredArticle
			pos, neg int
			created  int64
		)
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.URL, &a.Author, &a.PublishedAt, &a.SourceName, &a.APISource, &a.Language,
			&a.UpliftScore, &pos, &neg, &a.Confidence,
			&a.Emotions.Hope, &a.Emotions.Awe, &a.Emotions.Gratitude, &a.Emotions.Compassion, &a.Emotions.Relief, &a.Emotions.Joy,
			&a.ImpactLevel, &a.Reasoning, &a.OverallHopefulness, &a.PromptID, &created,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		switch {
		case pos == 1:
			a.Sentiment = "positive"
		case neg == 1:
			a.Sentiment = "negative"
		default:
			a.Sentiment = "neutral"
		}
		a.Categories = []string{}
		index[a.ID] = len(out)
		ids = append(ids, a.ID)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return []StoredArticle{}, nil
	}

	if err := s.attachCategories(ctx, ids, out, index); err != nil {
		return nil, err
	}
	if err := s.attachLocations(ctx, ids, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachCategories(ctx context.Context, ids []int64, out []StoredArticle, index map[int64]int) error {
	query, args, err := s.db.Builder().
		Select("ac.article_id", "c.name").
		From("article_categories ac").
		Join("categories c ON c.id = ac.category_id").
		Where(sq.Eq{"ac.article_id": ids}).
		OrderBy("c.name").ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			out[i].Categories = append(out[i].Categories, name)
		}
	}
	return rows.Err()
}

func (s *Store) attachLocations(ctx context.Context, ids []int64, out []StoredArticle, index map[int64]int) error {
	query, args, err := s.db.Builder().
		Select("article_id", "m49_code").
		From("article_locations").
		Where(sq.Eq{"article_id": ids}).
		OrderBy("m49_code").ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var code int
		if err := rows.Scan(&id, &code); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			out[i].LocationCodes = append(out[i].LocationCodes, code)
			out[i].LocationNames = append(out[i].LocationNames, i18n.M49Name(code))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range out {
		if len(out[i].LocationCodes) == 0 {
			out[i].LocationCodes = []int{i18n.M49World}
			out[i].LocationNames = []string{i18n.M49Name(i18n.M49World)}
		}
	}
	return nil
}

// NamedCount is a label with its article count.
type NamedCount struct {
	Name  string `json:"name"`
	Code  int    `json:"m49_code,omitempty"`
	Count int    `json:"count"`
}

// Stats summarizes the stored articles.
type Stats struct {
	TotalArticles   int          `json:"total_articles"`
	TotalCategories int          `json:"total_categories"`
	Last24h         int          `json:"articles_last_24h"`
	ImpactLevels    []NamedCount `json:"impact_levels"`
	TopCategories   []NamedCount `json:"top_categories"`
	TopLocations    []NamedCount `json:"top_locations"`
}

// Stats computes database statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	var err error
	if st.TotalArticles, err = s.Count(ctx); err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&st.TotalCategories); err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}

	q, args, err := s.db.Builder().Select("COUNT(*)").From("articles").
		Where(sq.GtOrEq{"created_at": s.now().Add(-24 * time.Hour).Unix()}).ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&st.Last24h); err != nil {
		return nil, fmt.Errorf("count recent: %w", err)
	}

	if st.ImpactLevels, err = s.namedCounts(ctx, s.db.Builder().
		Select("COALESCE(geographical_impact_level, '')", "COUNT(*) AS n").
		From("articles").
		GroupBy("geographical_impact_level").
		OrderBy("n DESC")); err != nil {
		return nil, fmt.Errorf("impact levels: %w", err)
	}
	if st.TopCategories, err = s.namedCounts(ctx, s.db.Builder().
		Select("c.name", "COUNT(*) AS n").
		From("article_categories ac").
		Join("categories c ON c.id = ac.category_id").
		GroupBy("c.name").
		OrderBy("n DESC", "c.name").Limit(10)); err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}

	q, args, err = s.db.Builder().
		Select("m49_code", "COUNT(*) AS n").
		From("article_locations").
		GroupBy("m49_code").
		OrderBy("n DESC", "m49_code").Limit(10).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("top locations: %w", err)
	}
	defer rows.Close()
	st.TopLocations = []NamedCount{}
	for rows.Next() {
		var nc NamedCount
		if err := rows.Scan(&nc.Code, &nc.Count); err != nil {
			return nil, err
		}
		nc.Name = i18n.M49Name(nc.Code)
		st.TopLocations = append(st.TopLocations, nc)
	}
	return st, rows.Err()
}

func (s *Store) namedCounts(ctx context.Context, b sq.SelectBuilder) ([]NamedCount, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []NamedCount{}
	for rows.Next() {
		var nc NamedCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}
