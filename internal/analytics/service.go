// Package analytics 记录页面访问并生成统计面板数据。
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fileshelf/internal/repository"

	"github.com/google/uuid"
)

// ErrInvalidPageView 表示访问记录缺少必要字段。
var ErrInvalidPageView = errors.New("analytics: invalid page view")

const (
	maxPathLength = 2048
	topPagesLimit = 10
)

// RecordInput 是客户端上报的一次访问，UserAgent 与 IP 由服务端填充。
type RecordInput struct {
	VisitorID string
	SessionID string
	PagePath  string
	Referrer  string
	UserAgent string
	IP        string
}

type Service struct {
	repo   repository.PageViewRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo repository.PageViewRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With("component", "analytics"), now: time.Now}
}

// Record 保存一次访问。缺失的访客和会话 ID 会自动生成。
func (s *Service) Record(ctx context.Context, in RecordInput) (*repository.PageView, error) {
	path := strings.TrimSpace(in.PagePath)
	if path == "" {
		return nil, fmt.Errorf("%w: page_path is required", ErrInvalidPageView)
	}
	if len(path) > maxPathLength {
		return nil, fmt.Errorf("%w: page_path too long", ErrInvalidPageView)
	}

	client := ParseUserAgent(in.UserAgent)
	view := repository.PageView{
		VisitorID:  orGenerated(in.VisitorID, "visitor_"),
		SessionID:  orGenerated(in.SessionID, "session_"),
		PagePath:   path,
		UserAgent:  in.UserAgent,
		IPAddress:  optional(in.IP),
		Referrer:   optional(in.Referrer),
		DeviceType: client.DeviceType,
		Browser:    client.Browser,
		OS:         client.OS,
	}

	saved, err := s.repo.Record(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("record page view: %w", err)
	}
	s.logger.Debug("page view recorded", "path", path, "device", client.DeviceType)
	return saved, nil
}

// Summary 统计全部时间、今天（UTC）与最近 7 天的访问数据。
func (s *Service) Summary(ctx context.Context) (*repository.TrafficSummary, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	summary, err := s.repo.Summary(ctx, repository.SummaryParams{
		TodayStart: today,
		WeekStart:  now.Add(-7 * 24 * time.Hour),
		TopLimit:   topPagesLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("traffic summary: %w", err)
	}
	if summary.TopPages == nil {
		summary.TopPages = []repository.PageCount{}
	}
	return summary, nil
}

func orGenerated(id, prefix string) string {
	id = strings.TrimSpace(id)
	if id != "" {
		return id
	}
	return prefix + uuid.NewString()
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
