package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/david/proposaland/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("opportunity not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query        string
	Priority     []models.Priority
	Organization string
	MinScore     float64
	DeadlineDays int
	SortBy       string // "score" (default), "deadline", "newest"
	Limit        int
	Offset       int
}

type ListResult struct {
	Opportunities []models.ScoredOpportunity `json:"opportunities"`
	Total         int                        `json:"total"`
	Limit         int                        `json:"limit"`
	Offset        int                        `json:"offset"`
}

const selectCols = `id, title, description, organization, location,
	budget, currency, deadline, reference_number, reference_confidence,
	keywords_found, relevance_score, priority, rank, source_url,
	score_breakdown, evaluated_at`

func scanScored(scan func(dest ...any) error) (models.ScoredOpportunity, error) {
	var o models.ScoredOpportunity
	var priority string
	var breakdown []byte

	err := scan(
		&o.ID, &o.Title, &o.Description, &o.Organization, &o.Location,
		&o.Budget, &o.Currency, &o.Deadline, &o.ReferenceNumber, &o.ReferenceConfidence,
		&o.KeywordsFound, &o.RelevanceScore, &priority, &o.Rank, &o.SourceURL,
		&breakdown, &o.EvaluatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Priority = models.Priority(priority)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &o.Breakdown); err != nil {
			return o, fmt.Errorf("decode score breakdown: %w", err)
		}
	}
	if o.KeywordsFound == nil {
		o.KeywordsFound = []string{}
	}
	return o, nil
}

const upsertSQL = `
	INSERT INTO scored_opportunities (
		id, title, description, organization, location,
		budget, currency, deadline, reference_number, reference_confidence,
		keywords_found, relevance_score, priority, rank, source_url,
		score_breakdown, evaluated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		organization = EXCLUDED.organization,
		location = EXCLUDED.location,
		budget = EXCLUDED.budget,
		currency = EXCLUDED.currency,
		deadline = EXCLUDED.deadline,
		reference_number = EXCLUDED.reference_number,
		reference_confidence = EXCLUDED.reference_confidence,
		keywords_found = EXCLUDED.keywords_found,
		relevance_score = EXCLUDED.relevance_score,
		priority = EXCLUDED.priority,
		rank = EXCLUDED.rank,
		source_url = EXCLUDED.source_url,
		score_breakdown = EXCLUDED.score_breakdown,
		evaluated_at = EXCLUDED.evaluated_at,
		updated_at = NOW()`

// SaveScored upserts a ranked batch in one round trip. Re-scoring a listing
// overwrites its previous row because IDs are derived from the listing.
func (s *Store) SaveScored(ctx context.Context, opps []models.ScoredOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range opps {
		breakdown, err := json.Marshal(o.Breakdown)
		if err != nil {
			return fmt.Errorf("encode score breakdown for %s: %w", o.ID, err)
		}
		keywords := o.KeywordsFound
		if keywords == nil {
			keywords = []string{}
		}
		batch.Queue(upsertSQL,
			o.ID, o.Title, o.Description, o.Organization, o.Location,
			o.Budget, o.Currency, o.Deadline, o.ReferenceNumber, o.ReferenceConfidence,
			keywords, o.RelevanceScore, string(o.Priority), o.Rank, o.SourceURL,
			breakdown, o.EvaluatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert %q: %w", opps[i].Title, err)
		}
	}
	return br.Close()
}

func (s *Store) GetScored(ctx context.Context, id uuid.UUID) (*models.ScoredOpportunity, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM scored_opportunities WHERE id = $1", selectCols), id)
	o, err := scanScored(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}

// buildWhere returns the filter clause for params and its positional args.
// The returned index is the next free placeholder number.
func buildWhere(params ListParams) (string, []any, int) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('english', $%d) OR title ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if len(params.Priority) > 0 {
		tiers := make([]string, len(params.Priority))
		for i, p := range params.Priority {
			tiers[i] = string(p)
		}
		where += fmt.Sprintf(" AND priority = ANY($%d)", argIdx)
		args = append(args, tiers)
		argIdx++
	}
	if org := strings.TrimSpace(params.Organization); org != "" {
		where += fmt.Sprintf(" AND organization ILIKE $%d", argIdx)
		args = append(args, org)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND relevance_score >= $%d", argIdx)
		args = append(args, params.MinScore)
		argIdx++
	}
	if params.DeadlineDays > 0 {
		where += fmt.Sprintf(" AND deadline IS NOT NULL AND deadline >= NOW() AND deadline <= NOW() + ($%d * INTERVAL '1 day')", argIdx)
		args = append(args, params.DeadlineDays)
		argIdx++
	}
	return where, args, argIdx
}

func orderBy(sortBy string) string {
	switch sortBy {
	case "deadline":
		return " ORDER BY deadline ASC NULLS LAST, relevance_score DESC"
	case "newest":
		return " ORDER BY evaluated_at DESC, relevance_score DESC"
	default:
		return " ORDER BY relevance_score DESC, evaluated_at DESC, id"
	}
}

func (s *Store) ListScored(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	where, args, argIdx := buildWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM scored_opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM scored_opportunities %s", selectCols, where)
	selectSQL += orderBy(params.SortBy)
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.ScoredOpportunity{}
	for rows.Next() {
		o, err := scanScored(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

// Aggregation is a single facet count.
type Aggregation struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Stats struct {
	Total          int                     `json:"total"`
	ByPriority     map[models.Priority]int `json:"by_priority"`
	ByOrganization []Aggregation           `json:"by_organization"`
	AverageScore   float64                 `json:"average_score"`
}

// GetStats reports stored counts per tier and the ten busiest organizations.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByPriority: make(map[models.Priority]int, len(models.Priorities))}
	for _, p := range models.Priorities {
		st.ByPriority[p] = 0
	}

	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(AVG(relevance_score), 0) FROM scored_opportunities").Scan(&st.Total, &st.AverageScore); err != nil {
		return nil, fmt.Errorf("count opportunities: %w", err)
	}

	rows, err := s.pool.Query(ctx, "SELECT priority, COUNT(*) FROM scored_opportunities GROUP BY priority")
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		st.ByPriority[models.Priority(tier)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT COALESCE(NULLIF(organization, ''), 'Unknown'), COUNT(*)
		FROM scored_opportunities
		GROUP BY 1 ORDER BY 2 DESC, 1 LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("count by organization: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Aggregation
		if err := rows.Scan(&a.Value, &a.Count); err != nil {
			return nil, fmt.Errorf("scan organization count: %w", err)
		}
		st.ByOrganization = append(st.ByOrganization, a)
	}
	return st, rows.Err()
}
