package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/apollo-mcp/internal/domain"
)

// ServeToolsUseCase provides the functionality to list available tools.
type ServeToolsUseCase struct {
	catalog ToolCatalog
	logger  *slog.Logger
}

// NewServeToolsUseCase creates a new ServeToolsUseCase.
func NewServeToolsUseCase(catalog ToolCatalog, logger *slog.Logger) *ServeToolsUseCase {
	return &ServeToolsUseCase{
		catalog: catalog,
		logger:  logger.With("usecase", "ServeTools"),
	}
}

// Execute returns every tool of the catalog in declaration order.
func (uc *ServeToolsUseCase) Execute(ctx context.Context) ([]domain.Operation, error) {
	uc.logger.Debug("Listing tools")
	tools, err := uc.catalog.List(ctx)
	if err != nil {
		uc.logger.Error("Failed to list tools from catalog", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list tools from catalog: %w", err)
	}
	uc.logger.Debug("Successfully listed tools", slog.Int("count", len(tools)))
	return tools, nil
}
