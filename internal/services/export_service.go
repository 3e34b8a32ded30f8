package services

import (
	"context"

	"github.com/xuri/excelize/v2"

	"crf-system/internal/dto"
	"crf-system/pkg/types"
)

const exportSheet = "Заявки"

// Выгрузка не больше этого числа строк за раз
const exportMaxRows = 100000

var exportHeaders = []string{
	"№ заявки", "Заявитель", "Подразделение", "Категория", "Фактор",
	"Описание проблемы", "Статус", "Исполнитель", "Создана", "Обновлена",
}

type ExportServiceInterface interface {
	ExportVisible(ctx context.Context, actorID uint64, filter types.Filter) (*excelize.File, error)
}

type ExportService struct {
	engine WorkflowEngineInterface
}

func NewExportService(engine WorkflowEngineInterface) ExportServiceInterface {
	return &ExportService{engine: engine}
}

// ExportVisible выгружает в xlsx все заявки, которые видит пользователь, с учетом фильтров списка.
func (s *ExportService) ExportVisible(ctx context.Context, actorID uint64, filter types.Filter) (*excelize.File, error) {
	filter.WithPagination = true
	filter.Limit = exportMaxRows
	filter.Offset = 0
	filter.Page = 1

	items, _, err := s.engine.ListVisible(ctx, actorID, filter)
	if err != nil {
		return nil, err
	}
	return BuildCRFWorkbook(items)
}

func exportRow(item dto.CRFSummaryDTO) []interface{} {
	factor, technician := "", ""
	if item.FactorName != nil {
		factor = *item.FactorName
	}
	if item.TechnicianName != nil {
		technician = *item.TechnicianName
	}
	return []interface{}{
		item.CRFNumber, item.RequesterName, item.DepartmentName, item.CategoryName, factor,
		item.Issue, item.StatusLabel, technician, item.CreatedAt, item.UpdatedAt,
	}
}

func BuildCRFWorkbook(items []dto.CRFSummaryDTO) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, style); err != nil {
		return nil, err
	}

	for i, item := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := exportRow(item)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 16)
	_ = f.SetColWidth(exportSheet, "B", "E", 25)
	_ = f.SetColWidth(exportSheet, "F", "F", 50)
	_ = f.SetColWidth(exportSheet, "G", "H", 30)
	_ = f.SetColWidth(exportSheet, "I", "J", 20)
	return f, nil
}
