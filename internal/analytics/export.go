package analytics

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// IncomeSheet задаёт имя листа в выгрузке выручки.
const IncomeSheet = "Income"

var incomeHeader = []any{"Date", "Label", "Orders", "Revenue"}

// ExportRange выгружает подневную выручку диапазона from..to в книгу xlsx.
func (a *Aggregator) ExportRange(ctx context.Context, s Scope, from, to string) ([]byte, error) {
	buckets, err := a.Range(ctx, s, from, to)
	if err != nil {
		return nil, err
	}
	return WriteIncomeWorkbook(buckets)
}

// WriteIncomeWorkbook записывает точки графика в лист Income с итоговой строкой.
func WriteIncomeWorkbook(buckets []Bucket) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(IncomeSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, 1, incomeHeader...); err != nil {
		return nil, err
	}

	total := decimal.Zero
	orders := 0
	for i, b := range buckets {
		if err := writeRow(f, i+2, b.Key, b.Label, b.OrderCount, b.Total.InexactFloat64()); err != nil {
			return nil, err
		}
		total = total.Add(b.Total)
		orders += b.OrderCount
	}

	last := len(buckets) + 2
	if err := writeRow(f, last, "Total", "", orders, total.InexactFloat64()); err != nil {
		return nil, err
	}

	for _, row := range []int{1, last} {
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(incomeHeader), row)
		if err := f.SetCellStyle(IncomeSheet, start, end, bold); err != nil {
			return nil, fmt.Errorf("set style: %w", err)
		}
	}
	if err := f.SetColWidth(IncomeSheet, "A", "D", 14); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(IncomeSheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
