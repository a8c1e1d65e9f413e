package service

import (
	"context"
	"fmt"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/repository"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// AuditService reads the audit trail.
type AuditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates an AuditService.
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit entries matching f, newest first.
func (s *AuditService) List(ctx context.Context, f domain.AuditFilter) (*domain.AuditPage, error) {
	if f.Action != nil && !domain.IsValidAuditAction(string(*f.Action)) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown action %q", *f.Action))
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, apperrors.InvalidInput("to must not be before from")
	}

	page, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return page, nil
}
