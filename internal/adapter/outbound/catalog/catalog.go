package catalog

import (
	"context"
	"log/slog"

	"github.com/i2y/apollo-mcp/internal/domain"
	"github.com/i2y/apollo-mcp/internal/usecase"
)

// Catalog is the static, read-only set of tools exposed by the server.
// It is built once from the domain operation table and never modified, so it
// needs no locking.
type Catalog struct {
	operations []domain.Operation
	byName     map[string]int
	logger     *slog.Logger
}

// New creates a Catalog over every supported operation.
func New(logger *slog.Logger) *Catalog {
	return NewWith(domain.Operations(), logger)
}

// NewWith creates a Catalog over the given operations. Later duplicates of a
// name are ignored.
func NewWith(operations []domain.Operation, logger *slog.Logger) *Catalog {
	log := logger.With("component", "catalog")
	c := &Catalog{
		operations: make([]domain.Operation, 0, len(operations)),
		byName:     make(map[string]int, len(operations)),
		logger:     log,
	}
	for _, op := range operations {
		name := string(op.Name)
		if name == "" {
			log.Warn("Skipping operation with empty name")
			continue
		}
		if _, dup := c.byName[name]; dup {
			log.Warn("Skipping duplicate operation", slog.String("tool_name", name))
			continue
		}
		c.byName[name] = len(c.operations)
		c.operations = append(c.operations, op)
	}
	log.Info("Tool catalog built", slog.Int("count", len(c.operations)))
	return c
}

// List returns every operation in declaration order.
func (c *Catalog) List(ctx context.Context) ([]domain.Operation, error) {
	list := make([]domain.Operation, len(c.operations))
	copy(list, c.operations)
	c.logger.Debug("Listed tools from catalog", slog.Int("count", len(list)))
	return list, nil
}

// FindByName returns the operation registered under name, or
// usecase.ErrToolNotFound.
func (c *Catalog) FindByName(ctx context.Context, name string) (*domain.Operation, error) {
	i, ok := c.byName[name]
	if !ok {
		c.logger.Warn("Tool not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	op := c.operations[i]
	return &op, nil
}

// Len reports the number of tools.
func (c *Catalog) Len() int {
	return len(c.operations)
}
