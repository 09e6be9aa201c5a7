package warehouse

import (
	"context"
	"fmt"

	"lotkeeper/internal/core/id"
	"lotkeeper/pkg/logger"
)

// CodePrefix prefixes generated warehouse codes.
const CodePrefix = "WH"

// CodeGenerator issues sequential catalog codes.
type CodeGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Service provides business logic for the Warehouse catalog.
type Service struct {
	repo  Repository
	codes CodeGenerator
}

// NewService creates a new Warehouse service. codes may be nil, in which
// case a code is required on create.
func NewService(repo Repository, codes CodeGenerator) *Service {
	return &Service{repo: repo, codes: codes}
}

// Create validates and stores a warehouse, generating a code when empty.
func (s *Service) Create(ctx context.Context, wh *Warehouse) error {
	if wh.Code == "" && s.codes != nil {
		code, err := s.codes.Next(ctx, CodePrefix)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		wh.Code = code
	}
	if err := wh.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, wh); err != nil {
		return err
	}

	logger.Info(ctx, "warehouse created", "id", wh.ID, "code", wh.Code)
	return nil
}

// GetByID returns a warehouse.
func (s *Service) GetByID(ctx context.Context, whID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, whID)
}

// List returns warehouses.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Warehouse, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
