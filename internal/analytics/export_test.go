package analytics

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func TestExportRange(t *testing.T) {
	src := &stubSource{days: []model.DayTotal{
		{Day: "2026-03-01", Total: dec("150"), OrderCount: 2},
		{Day: "2026-03-02", Total: dec("50"), OrderCount: 1},
	}}

	data, err := newTestAggregator(src).ExportRange(context.Background(), ownerScope(), "2026-03-01", "2026-03-03")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{IncomeSheet}, f.GetSheetList())

	rows, err := f.GetRows(IncomeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Date", "Label", "Orders", "Revenue"}, rows[0])
	assert.Equal(t, []string{"2026-03-01", "3/1", "2", "150"}, rows[1])
	assert.Equal(t, []string{"2026-03-03", "3/3", "0", "0"}, rows[3])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "3", rows[4][2])
	assert.Equal(t, "200", rows[4][3])
}

func TestExportRange_InvalidRange(t *testing.T) {
	_, err := newTestAggregator(&stubSource{}).ExportRange(context.Background(), ownerScope(), "2026-03-03", "2026-03-01")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
