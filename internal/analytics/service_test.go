package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fileshelf/internal/logging"
	"fileshelf/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePageViews struct {
	recorded []repository.PageView
	params   repository.SummaryParams
	summary  *repository.TrafficSummary
	err      error
}

func (f *fakePageViews) Record(ctx context.Context, view repository.PageView) (*repository.PageView, error) {
	if f.err != nil {
		return nil, f.err
	}
	view.ID = "pv-1"
	f.recorded = append(f.recorded, view)
	return &view, nil
}

func (f *fakePageViews) Summary(ctx context.Context, params repository.SummaryParams) (*repository.TrafficSummary, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func TestRecord_FillsServerFields(t *testing.T) {
	repo := &fakePageViews{}
	svc := NewService(repo, logging.Discard())

	view, err := svc.Record(context.Background(), RecordInput{
		PagePath:  "/",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0",
		IP:        "203.0.113.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "pv-1", view.ID)
	assert.True(t, strings.HasPrefix(view.VisitorID, "visitor_"))
	assert.True(t, strings.HasPrefix(view.SessionID, "session_"))
	assert.Equal(t, "Firefox", view.Browser)
	assert.Equal(t, "Linux", view.OS)
	require.NotNil(t, view.IPAddress)
	assert.Equal(t, "203.0.113.9", *view.IPAddress)
	assert.Nil(t, view.Referrer)
}

func TestRecord_KeepsClientIDs(t *testing.T) {
	repo := &fakePageViews{}
	svc := NewService(repo, logging.Discard())

	view, err := svc.Record(context.Background(), RecordInput{
		VisitorID: "visitor_abc",
		SessionID: "session_xyz",
		PagePath:  repository.EventPathPrefix + "download",
		Referrer:  "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "visitor_abc", view.VisitorID)
	assert.Equal(t, "session_xyz", view.SessionID)
	assert.Equal(t, "event:download", view.PagePath)
}

func TestRecord_Validation(t *testing.T) {
	svc := NewService(&fakePageViews{}, logging.Discard())

	_, err := svc.Record(context.Background(), RecordInput{PagePath: "  "})
	assert.ErrorIs(t, err, ErrInvalidPageView)

	_, err = svc.Record(context.Background(), RecordInput{PagePath: "/" + strings.Repeat("a", maxPathLength)})
	assert.ErrorIs(t, err, ErrInvalidPageView)
}

func TestSummary_Windows(t *testing.T) {
	repo := &fakePageViews{summary: &repository.TrafficSummary{PageViews: 3}}
	svc := NewService(repo, logging.Discard())
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC) }

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.PageViews)
	assert.NotNil(t, summary.TopPages)

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), repo.params.TodayStart)
	assert.Equal(t, time.Date(2024, 5, 3, 15, 30, 0, 0, time.UTC), repo.params.WeekStart)
	assert.Equal(t, topPagesLimit, repo.params.TopLimit)
}

func TestSummary_RepoError(t *testing.T) {
	svc := NewService(&fakePageViews{err: errors.New("db down")}, logging.Discard())
	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
}
