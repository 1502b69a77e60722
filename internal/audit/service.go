// Package audit membaca jejak audit posting dan pembuatan draft.
package audit

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository menyediakan akses ke tabel audit_logs.
type Repository interface {
	Timeline(ctx context.Context, params WindowParams) ([]TimelineRow, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging, terbaru lebih dulu.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := windowParams(filters)
	params.Offset = (page - 1) * pageSize
	params.Limit = pageSize + 1
	rows, err := s.repo.Timeline(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Timeline(ctx, windowParams(filters))
}

func windowParams(f TimelineFilters) WindowParams {
	return WindowParams{
		TenantID: f.TenantID,
		From:     f.From,
		To:       f.To,
		Actor:    strings.TrimSpace(f.Actor),
		Entity:   strings.TrimSpace(f.Entity),
		EntityID: strings.TrimSpace(f.EntityID),
		Action:   strings.TrimSpace(f.Action),
	}
}
