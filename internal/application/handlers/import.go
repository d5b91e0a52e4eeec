package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/ersonp/raices-core/internal/domain/services"
	"github.com/ersonp/raices-core/internal/infrastructure/parsers"
)

// ImportHandler handles importing people from files.
type ImportHandler struct {
	service *services.ImportService
	canvas  *Canvas
}

// NewImportHandler creates a new import handler. canvas, when set, is
// invalidated after people are written so the next graph read re-projects.
func NewImportHandler(service *services.ImportService, canvas *Canvas) *ImportHandler {
	return &ImportHandler{
		service: service,
		canvas:  canvas,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format     string                    // "json", "csv", or "auto"
	DryRun     bool                      // Validate without saving
	OnConflict services.ConflictStrategy // How to handle existing people
	CreatedBy  string                    // Recorded on new people
	Reconcile  bool                      // Heal missing mirrors afterwards
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []services.ImportError
	Repair   *services.RepairReport
}

// Handle imports people from a file.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}

	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	rawPeople, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	if len(rawPeople) == 0 {
		return &ImportResult{}, nil
	}

	serviceResult, err := h.service.Import(ctx, rawPeople, services.ImportOptions{
		DryRun:     opts.DryRun,
		OnConflict: opts.OnConflict,
		CreatedBy:  opts.CreatedBy,
		Reconcile:  opts.Reconcile,
	})
	if err != nil {
		if h.canvas != nil {
			h.canvas.Invalidate()
		}
		return nil, err
	}

	if h.canvas != nil && !opts.DryRun && serviceResult.Imported > 0 {
		h.canvas.Invalidate()
	}

	return &ImportResult{
		Imported: serviceResult.Imported,
		Skipped:  serviceResult.Skipped,
		Errors:   serviceResult.Errors,
		Repair:   serviceResult.Repair,
	}, nil
}
