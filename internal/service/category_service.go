package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// CategoryService manages ticket categories.
type CategoryService struct {
	categories repository.CategoryRepository
}

// CategoryInput carries create/update fields. Nil fields are left unchanged on update.
type CategoryInput struct {
	Name        *string
	Description *string
	Department  *string
}

// NewCategoryService constructs the service.
func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns all categories sorted by name.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "category")
	}
	return categories, nil
}

// Get returns one category with its ticket count.
func (s *CategoryService) Get(ctx context.Context, id string) (*domain.Category, error) {
	if err := requireID(id, "category"); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "category")
	}
	return category, nil
}

// Create adds a category.
func (s *CategoryService) Create(ctx context.Context, p *auth.Principal, in CategoryInput) (*domain.Category, error) {
	if err := auth.Authorize(p, auth.ActionManageCategories, nil); err != nil {
		return nil, err
	}
	category := &domain.Category{}
	if in.Name == nil {
		in.Name = new(string)
	}
	if in.Department == nil {
		in.Department = new(string)
	}
	if err := applyCategoryInput(category, in); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, categoryStoreError(err)
	}
	return category, nil
}

// Update changes the supplied fields of a category.
func (s *CategoryService) Update(ctx context.Context, p *auth.Principal, id string, in CategoryInput) (*domain.Category, error) {
	if err := auth.Authorize(p, auth.ActionManageCategories, nil); err != nil {
		return nil, err
	}
	if err := requireID(id, "category"); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "category")
	}
	if err := applyCategoryInput(category, in); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, categoryStoreError(err)
	}
	return category, nil
}

// Delete removes a category that no ticket references.
func (s *CategoryService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Authorize(p, auth.ActionManageCategories, nil); err != nil {
		return err
	}
	if err := requireID(id, "category"); err != nil {
		return err
	}
	deleted, count, err := s.categories.DeleteIfUnused(ctx, id)
	if err != nil {
		return apperrors.FromStore(err, "category")
	}
	if !deleted {
		return apperrors.NewConflict(
			fmt.Sprintf("Cannot delete category. It has %d ticket(s) associated with it.", count),
			map[string]any{"ticket_count": count},
		)
	}
	return nil
}

func applyCategoryInput(category *domain.Category, in CategoryInput) error {
	errs := fieldErrors{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		errs.minLen("name", name, 2)
		errs.maxLen("name", name, 100)
		category.Name = name
	}
	if in.Department != nil {
		department := strings.TrimSpace(*in.Department)
		errs.minLen("department", department, 2)
		category.Department = department
	}
	if in.Description != nil {
		category.Description = optionalText(in.Description)
	}
	return errs.err()
}

func categoryStoreError(err error) error {
	if apperrors.IsUniqueViolation(err, "") {
		return apperrors.NewConflict("a category with this name already exists", nil)
	}
	return apperrors.FromStore(err, "category")
}
