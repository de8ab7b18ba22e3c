package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fileshelf/internal/repository"

	"github.com/google/uuid"
)

// PageViewRepository 实现 repository.PageViewRepository。
type PageViewRepository struct {
	db *sql.DB
}

func NewPageViewRepository(db *sql.DB) *PageViewRepository {
	return &PageViewRepository{db: db}
}

// Record 写入一条访问记录。
func (r *PageViewRepository) Record(ctx context.Context, view repository.PageView) (*repository.PageView, error) {
	if view.ID == "" {
		view.ID = uuid.NewString()
	}

	query := `INSERT INTO page_views
	(id, visitor_id, session_id, page_path, user_agent, ip_address, referrer, device_type, browser, os)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		view.ID,
		view.VisitorID,
		view.SessionID,
		view.PagePath,
		view.UserAgent,
		nullString(view.IPAddress),
		nullString(view.Referrer),
		view.DeviceType,
		view.Browser,
		view.OS,
	).Scan(&view.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert page view: %w", err)
	}
	return &view, nil
}

// Summary 汇总访问数据，自定义事件（event: 前缀）不计入。
func (r *PageViewRepository) Summary(ctx context.Context, params repository.SummaryParams) (*repository.TrafficSummary, error) {
	limit := params.TopLimit
	if limit <= 0 {
		limit = 10
	}

	summary := &repository.TrafficSummary{TopPages: []repository.PageCount{}}
	totals := `SELECT
		COUNT(DISTINCT visitor_id),
		COUNT(*),
		COUNT(DISTINCT session_id),
		COUNT(DISTINCT visitor_id) FILTER (WHERE created_at >= $2),
		COUNT(DISTINCT visitor_id) FILTER (WHERE created_at >= $3)
	FROM page_views WHERE page_path NOT LIKE $1`

	pattern := repository.EventPathPrefix + "%"
	if err := r.db.QueryRowContext(ctx, totals, pattern, params.TodayStart, params.WeekStart).Scan(
		&summary.UniqueVisitors,
		&summary.PageViews,
		&summary.UniqueSessions,
		&summary.TodayUniqueVisitors,
		&summary.WeekUniqueVisitors,
	); err != nil {
		return nil, fmt.Errorf("query traffic totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT page_path, COUNT(*) AS views
	FROM page_views WHERE page_path NOT LIKE $1
	GROUP BY page_path ORDER BY views DESC, page_path LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("query top pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pc repository.PageCount
		if err := rows.Scan(&pc.PagePath, &pc.Views); err != nil {
			return nil, err
		}
		summary.TopPages = append(summary.TopPages, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
