package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
	"listings-api/repositories"
	"listings-api/spreadsheet"
	"listings-api/storage"
)

// ImportService define la interfaz para actualizar el inventario desde planillas
type ImportService interface {
	// Import lee una planilla y sincroniza o reemplaza los avisos. Con
	// DryRun solo informa lo que cambiaría
	Import(ctx context.Context, req dto.ImportRequest, r io.Reader) (*dto.ImportReport, error)
	History(ctx context.Context, limit int) ([]domain.UploadLog, error)
	Latest(ctx context.Context) (*domain.UploadLog, error)
}

type importService struct {
	repos    repositories.Repositories
	store    storage.ImageStore
	notifier *ChangeNotifier
	n        *normalize.Normalizer
	logger   *zap.Logger
	now      func() time.Time
}

func NewImportService(
	repos repositories.Repositories,
	store storage.ImageStore,
	notifier *ChangeNotifier,
	n *normalize.Normalizer,
	logger *zap.Logger,
) ImportService {
	return &importService{
		repos:    repos,
		store:    store,
		notifier: notifier,
		n:        n,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *importService) Import(ctx context.Context, req dto.ImportRequest, r io.Reader) (*dto.ImportReport, error) {
	// 1. Modo
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = dto.ImportModeSync
	}
	if mode != dto.ImportModeSync && mode != dto.ImportModeReplace {
		return nil, validationErrorf("unknown import mode %q", req.Mode)
	}

	// 2. Leer la planilla y verificar las columnas obligatorias
	sheet, err := spreadsheet.Read(req.FileName, r)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
			return nil, validationErrorf("%v (use .csv or .xlsx)", err)
		}
		return nil, validationErrorf("cannot read spreadsheet: %v", err)
	}
	cols := s.n.Columns()
	for _, col := range []string{cols.Building, cols.Price} {
		if !sheet.HasColumn(col) {
			return nil, validationErrorf("missing required column %q", col)
		}
	}

	report := &dto.ImportReport{
		FileName: req.FileName,
		Mode:     mode,
		DryRun:   req.DryRun,
		Rows:     len(sheet.Rows),
		Errors:   []dto.RowError{},
	}

	// 3. Parsear filas (las inválidas se informan y se omiten)
	parsed := make([]*domain.Listing, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		listing, err := s.parseRow(row, cols)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, dto.RowError{Row: row.Number, Reason: err.Error()})
			continue
		}
		parsed = append(parsed, listing)
	}
	if len(parsed) == 0 {
		return nil, validationErrorf("the sheet has no valid rows (%d skipped); nothing was changed", report.Skipped)
	}

	// 4. Planificar las escrituras contra el inventario actual
	existing, err := s.repos.Listings.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	var plan repositories.SyncPlan
	if mode == dto.ImportModeReplace {
		plan = planReplace(existing, parsed, report)
	} else {
		plan = planSync(existing, parsed, report)
	}

	if req.DryRun {
		s.logger.Info("import dry run",
			zap.String("file", req.FileName),
			zap.String("mode", mode),
			zap.Int("inserted", report.Inserted),
			zap.Int("updated", report.Updated),
			zap.Int("deleted", report.Deleted))
		return report, nil
	}

	// 5. Aplicar todo junto con el registro de carga en una transacción
	plan.Log = &domain.UploadLog{
		UploadedAt: s.now(),
		FileName:   req.FileName,
		Mode:       mode,
		Rows:       report.Rows,
		Inserted:   report.Inserted,
		Updated:    report.Updated,
		Unchanged:  report.Unchanged,
		Deleted:    report.Deleted,
		Skipped:    report.Skipped,
	}
	removed, err := s.repos.Listings.ApplySync(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("apply import: %w", err)
	}
	removeBlobs(ctx, s.store, removed, s.logger)

	s.logger.Info("spreadsheet imported",
		zap.String("file", req.FileName),
		zap.String("mode", mode),
		zap.Int("rows", report.Rows),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped))
	s.notifier.Changed(ctx, domain.EventImported)
	return report, nil
}

func (s *importService) parseRow(row spreadsheet.Row, cols normalize.Columns) (*domain.Listing, error) {
	cleaned := s.n.CleanBuildingName(row.Get(cols.Building))
	if cleaned == "" {
		return nil, errors.New("empty building name")
	}

	price, err := normalize.ParsePrice(row.Get(cols.Price))
	if err != nil {
		return nil, fmt.Errorf("price: %v", err)
	}
	exclusive, err := areaInPyung(row.Get(cols.ExclusiveArea))
	if err != nil {
		return nil, fmt.Errorf("exclusive area: %v", err)
	}
	contract, err := areaInPyung(row.Get(cols.ContractArea))
	if err != nil {
		return nil, fmt.Errorf("contract area: %v", err)
	}

	raw, err := json.Marshal(row.Values)
	if err != nil {
		return nil, fmt.Errorf("encode row: %v", err)
	}

	listing := &domain.Listing{
		ExclusiveArea: exclusive,
		ContractArea:  contract,
		PropertyType:  s.n.PropertyType(row.Get(cols.PropertyType)),
		Status:        domain.StatusAvailable,
		Source:        domain.SourceImport,
		RawRow:        datatypes.JSON(raw),
	}
	normalize.ApplyName(listing, cleaned)
	price.Apply(listing)
	return listing, nil
}

// areaInPyung lee una superficie de la planilla. Está en ㎡ salvo que la celda diga 평
func areaInPyung(raw string) (float64, error) {
	v, err := normalize.ParseArea(raw)
	if err != nil || v == 0 {
		return v, err
	}
	if strings.Contains(raw, "평") {
		return v, nil
	}
	return normalize.ToPyung(v), nil
}

// planSync empareja filas con avisos existentes por name key. Los avisos
// con la misma clave se toman en orden de id; los que sobran se borran
func planSync(existing []domain.Listing, parsed []*domain.Listing, report *dto.ImportReport) repositories.SyncPlan {
	queues := make(map[string][]*domain.Listing)
	for i := range existing {
		l := &existing[i]
		queues[l.NameKey] = append(queues[l.NameKey], l)
	}

	var plan repositories.SyncPlan
	claimed := make(map[uint]bool, len(existing))
	for _, row := range parsed {
		queue := queues[row.NameKey]
		if len(queue) == 0 {
			plan.Inserts = append(plan.Inserts, row)
			continue
		}
		current := queue[0]
		queues[row.NameKey] = queue[1:]
		claimed[current.ID] = true

		if current.SameFacts(row) {
			report.Unchanged++
			continue
		}
		current.CopyFacts(row)
		plan.Updates = append(plan.Updates, current)
	}

	for i := range existing {
		if !claimed[existing[i].ID] {
			plan.DeleteIDs = append(plan.DeleteIDs, existing[i].ID)
		}
	}

	report.Inserted = len(plan.Inserts)
	report.Updated = len(plan.Updates)
	report.Deleted = len(plan.DeleteIDs)
	return plan
}

func planReplace(existing []domain.Listing, parsed []*domain.Listing, report *dto.ImportReport) repositories.SyncPlan {
	report.Deleted = len(existing)
	report.Inserted = len(parsed)
	return repositories.SyncPlan{Replace: true, Inserts: parsed}
}

func (s *importService) History(ctx context.Context, limit int) ([]domain.UploadLog, error) {
	if limit < 0 {
		return nil, validationErrorf("limit must not be negative")
	}
	entries, err := s.repos.UploadLogs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list upload logs: %w", err)
	}
	if entries == nil {
		entries = []domain.UploadLog{}
	}
	return entries, nil
}

func (s *importService) Latest(ctx context.Context) (*domain.UploadLog, error) {
	return s.repos.UploadLogs.Latest(ctx)
}
