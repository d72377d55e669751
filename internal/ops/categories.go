package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

// SetCategoriesInput contains parameters for SetCategories.
type SetCategoriesInput struct {
	ID         string
	Categories []string
}

// SetCategories replaces a relationship's categories. Links that survive
// keep their original timestamps, so the trunk does not move.
func (s *Service) SetCategories(ctx context.Context, input SetCategoriesInput) (*RelationshipView, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	categories, err := validateCategories(input.Categories)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.ReplaceCategories(ctx, input.ID, categories, true, s.now()); err != nil {
		return nil, err
	}
	s.invalidate(ctx, input.ID)

	rel, err := s.store.GetRelationship(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	s.repairLevel(rel)
	view := newRelationshipView(*rel)
	return &view, nil
}

// ListCategoriesOutput contains the result of ListCategories.
type ListCategoriesOutput struct {
	Items []domain.Category `json:"items"`
}

// ListCategories returns the category vocabulary.
func (s *Service) ListCategories(ctx context.Context) (*ListCategoriesOutput, error) {
	items, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Category{}
	}
	return &ListCategoriesOutput{Items: items}, nil
}
