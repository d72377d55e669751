package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/leveling"
	"github.com/hpungsan/grove/internal/progression"
)

// maxNameChars bounds relationship display names.
const maxNameChars = 200

// Progress is the relationship's position within its current level.
type Progress struct {
	Earned  int `json:"earned"`
	Needed  int `json:"needed"`
	Percent int `json:"percent"`
	// NextLevelXP is nil at the max level.
	NextLevelXP *int `json:"next_level_xp"`
}

// RelationshipView is a relationship with its level progress.
type RelationshipView struct {
	domain.Relationship
	Progress Progress `json:"progress"`
}

func newRelationshipView(rel domain.Relationship) RelationshipView {
	earned, needed := leveling.ProgressWithinLevel(rel.XP, rel.Level)
	p := Progress{
		Earned:  earned,
		Needed:  needed,
		Percent: leveling.ProgressPercent(rel.XP, rel.Level),
	}
	if next, ok := leveling.XPForNextLevel(rel.Level); ok {
		p.NextLevelXP = &next
	}
	return RelationshipView{Relationship: rel, Progress: p}
}

// CreateRelationshipInput contains parameters for CreateRelationship.
type CreateRelationshipInput struct {
	Name             string
	Categories       []string // 1..3, first is the trunk
	ReminderInterval string
	PhotoURL         *string
	Tags             []string
}

// CreateRelationship starts tracking someone at level 1 with 0 XP.
func (s *Service) CreateRelationship(ctx context.Context, input CreateRelationshipInput) (*RelationshipView, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	categories, err := validateCategories(input.Categories)
	if err != nil {
		return nil, err
	}
	interval, err := domain.ParseReminderInterval(input.ReminderInterval)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	now := s.now()
	rel := &domain.Relationship{
		ID:               domain.NewID(),
		Name:             name,
		Level:            1,
		XP:               0,
		Categories:       categories,
		ReminderInterval: interval,
		PhotoURL:         cleanOptionalString(input.PhotoURL),
		Tags:             cleanTags(input.Tags),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateRelationship(ctx, rel); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "")

	view := newRelationshipView(*rel)
	return &view, nil
}

// GetRelationshipInput contains parameters for GetRelationship.
type GetRelationshipInput struct {
	ID string
}

// GetRelationship returns a relationship and its level progress. A stored
// level that disagrees with the stored XP is reported and replaced by the
// derived level.
func (s *Service) GetRelationship(ctx context.Context, input GetRelationshipInput) (*RelationshipView, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	rel, err := s.store.GetRelationship(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	s.repairLevel(rel)
	view := newRelationshipView(*rel)
	return &view, nil
}

// repairLevel overwrites rel.Level with the level derived from XP.
func (s *Service) repairLevel(rel *domain.Relationship) {
	if err := progression.CheckConsistency(*rel); err != nil {
		s.logger.Warn("stored level disagrees with xp", zap.String("relationship_id", rel.ID), zap.Error(err))
		rel.Level = leveling.LevelForXP(rel.XP)
	}
}

// ListRelationshipsInput contains parameters for ListRelationships.
type ListRelationshipsInput struct {
	Limit  int
	Offset int
}

// ListRelationshipsOutput contains the result of ListRelationships.
type ListRelationshipsOutput struct {
	Items      []RelationshipView `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// ListRelationships returns relationships newest first.
func (s *Service) ListRelationships(ctx context.Context, input ListRelationshipsInput) (*ListRelationshipsOutput, error) {
	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	rels, total, err := s.store.ListRelationships(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]RelationshipView, 0, len(rels))
	for i := range rels {
		s.repairLevel(&rels[i])
		items = append(items, newRelationshipView(rels[i]))
	}

	return &ListRelationshipsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// UpdateRelationshipInput contains parameters for UpdateRelationship.
// Nil fields are left unchanged. Level and XP are not editable.
type UpdateRelationshipInput struct {
	ID               string
	Name             *string
	ReminderInterval *string
	PhotoURL         *string
	Tags             *[]string
}

// UpdateRelationship edits the profile fields of a relationship.
func (s *Service) UpdateRelationship(ctx context.Context, input UpdateRelationshipInput) (*RelationshipView, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if input.Name == nil && input.ReminderInterval == nil && input.PhotoURL == nil && input.Tags == nil {
		return nil, errors.NewInvalidRequest("at least one of name, reminder_interval, photo_url or tags is required")
	}

	rel, err := s.store.GetRelationship(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := cleanName(*input.Name)
		if err != nil {
			return nil, err
		}
		rel.Name = name
	}
	if input.ReminderInterval != nil {
		interval, err := domain.ParseReminderInterval(*input.ReminderInterval)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		rel.ReminderInterval = interval
	}
	if input.PhotoURL != nil {
		// An empty string clears the photo.
		rel.PhotoURL = cleanOptionalString(input.PhotoURL)
	}
	if input.Tags != nil {
		rel.Tags = cleanTags(*input.Tags)
	}
	rel.UpdatedAt = s.now()

	if err := s.store.UpdateRelationshipProfile(ctx, rel); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rel.ID)

	s.repairLevel(rel)
	view := newRelationshipView(*rel)
	return &view, nil
}

// DeleteRelationshipInput contains parameters for DeleteRelationship.
type DeleteRelationshipInput struct {
	ID string
}

// DeleteOutput contains the result of a delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteRelationship removes a relationship and everything recorded for it.
func (s *Service) DeleteRelationship(ctx context.Context, input DeleteRelationshipInput) (*DeleteOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := s.store.DeleteRelationship(ctx, input.ID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, input.ID)
	return &DeleteOutput{Deleted: true, ID: input.ID}, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewInvalidRequest("name is required")
	}
	if len([]rune(name)) > maxNameChars {
		return "", errors.NewInvalidRequest(fmt.Sprintf("name must be at most %d characters", maxNameChars))
	}
	return name, nil
}

// validateCategories cleans names and enforces 1..MaxCategories entries.
func validateCategories(names []string) ([]string, error) {
	categories := cleanCategories(names)
	if len(categories) == 0 {
		return nil, errors.NewInvalidRequest("at least one category is required")
	}
	if len(categories) > domain.MaxCategories {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d categories are allowed", domain.MaxCategories))
	}
	return categories, nil
}
