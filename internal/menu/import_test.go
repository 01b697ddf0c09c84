package menu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseSheet(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Name", "Price", "Category", "Description"},
		{"Mercimek", "85,50", "soups", "red lentil"},
		{"Ayran", 30, "drinks"},
		{"Broken", "abc"},
		{"Refund", "-4"},
		{"", "10"},
		{"Baklava", "140"},
	})

	rows, skipped, err := ParseSheet(buf)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "Mercimek", rows[0].Name)
	assert.Equal(t, "85.5", rows[0].Price.String())
	assert.Equal(t, "soups", rows[0].Category)
	assert.Equal(t, "red lentil", rows[0].Description)
	assert.Equal(t, 2, rows[0].Line)

	assert.Equal(t, "Ayran", rows[1].Name)
	assert.Equal(t, "30", rows[1].Price.String())
	assert.Empty(t, rows[1].Description)

	assert.Equal(t, "Baklava", rows[2].Name)
	assert.Len(t, skipped, 2)
	assert.Contains(t, skipped[0], "line 4")
}

func TestParseSheetWithoutHeader(t *testing.T) {
	buf := workbook(t, [][]any{{"Pide", "95"}})

	rows, skipped, err := ParseSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Line)
	assert.Empty(t, skipped)
}

func TestParseSheetRejectsNonWorkbook(t *testing.T) {
	_, _, err := ParseSheet(bytes.NewBufferString("name,price\nsoup,10\n"))
	assert.Error(t, err)
}
