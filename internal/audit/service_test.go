package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows []TimelineRow
	last WindowParams
}

func (s *stubTimelineRepo) Timeline(_ context.Context, p WindowParams) ([]TimelineRow, error) {
	s.last = p
	if p.Limit > 0 && len(s.rows) > p.Limit {
		return s.rows[:p.Limit], nil
	}
	return s.rows, nil
}

func row(ts, action, entityID string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, Actor: "clerk", Action: action, Entity: "transaction", EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		row("2026-03-10T10:00:00Z", "transaction.posted", "1"),
		row("2026-03-09T09:00:00Z", "transaction.drafted", "1"),
		row("2026-03-08T08:00:00Z", "transaction.drafted", "2"),
	}}
	tenant := uuid.New()
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		TenantID: tenant,
		Entity:   " transaction ",
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.last.Limit)
	require.Zero(t, repo.last.Offset)
	require.Equal(t, tenant, repo.last.TenantID)
	require.Equal(t, "transaction", repo.last.Entity)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	_, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize+1, repo.last.Limit)
	require.Equal(t, 2*maxPageSize, repo.last.Offset)
}

func TestServiceExportIsUnbounded(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{row("2026-03-10T10:00:00Z", "transaction.posted", "1")}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Actor: "clerk"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, repo.last.Limit)
	require.Equal(t, "clerk", repo.last.Actor)
}

func TestServiceWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	r := row("2026-03-10T10:00:00Z", "transaction.posted", "abc")
	r.Meta = map[string]any{"document_number": "SAL-2026-0001"}
	body, err := WriteCSV([]TimelineRow{r})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor,action,entity,entity_id,meta", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "2026-03-10T10:00:00Z,clerk,transaction.posted,transaction,abc,"))
	require.Contains(t, lines[1], "SAL-2026-0001")
}
