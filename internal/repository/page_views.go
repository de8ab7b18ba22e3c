package repository

import (
	"context"
	"time"
)

// EventPathPrefix 标记自定义事件，统计访问量时排除。
const EventPathPrefix = "event:"

// PageView 描述一次页面访问或自定义事件。
type PageView struct {
	ID         string    `json:"id"`
	VisitorID  string    `json:"visitor_id"`
	SessionID  string    `json:"session_id"`
	PagePath   string    `json:"page_path"`
	UserAgent  string    `json:"user_agent"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	Referrer   *string   `json:"referrer,omitempty"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	CreatedAt  time.Time `json:"created_at"`
}

// PageCount 是单个页面的访问次数。
type PageCount struct {
	PagePath string `json:"page_path"`
	Views    int64  `json:"views"`
}

// TrafficSummary 是分析面板展示的汇总数据。
type TrafficSummary struct {
	UniqueVisitors      int64       `json:"unique_visitors"`
	PageViews           int64       `json:"page_views"`
	UniqueSessions      int64       `json:"unique_sessions"`
	TodayUniqueVisitors int64       `json:"today_unique_visitors"`
	WeekUniqueVisitors  int64       `json:"week_unique_visitors"`
	TopPages            []PageCount `json:"top_pages"`
}

// SummaryParams 指定统计窗口的起点。
type SummaryParams struct {
	TodayStart time.Time
	WeekStart  time.Time
	TopLimit   int
}

// PageViewRepository 持久化访问记录并提供汇总查询。
type PageViewRepository interface {
	Record(ctx context.Context, view PageView) (*PageView, error)
	Summary(ctx context.Context, params SummaryParams) (*TrafficSummary, error)
}
