package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

const sampleCSV = "상세주소 ,매물가,전용면적,공급/계약면적,매물종류\n" +
	"발산더블유타워 제에이동 제12층 제1203호,\"2,000/180\",84.5,160,사무실\n" +
	",,,,\n" +
	"델타빌딩 301호,35000,50,90,상가점포\n"

func TestRead_CSVUTF8(t *testing.T) {
	sheet, err := Read("listings.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.True(t, sheet.HasColumn("상세주소"))
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "2,000/180", sheet.Rows[0].Get("매물가"))
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, "델타빌딩 301호", sheet.Rows[1].Get("상세주소"))
	assert.Equal(t, 4, sheet.Rows[1].Number)
}

func TestRead_CSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleCSV)...)
	sheet, err := Read("LISTINGS.CSV", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "상세주소", sheet.Header[0])
}

func TestRead_CSVCP949(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(sampleCSV)
	require.NoError(t, err)

	sheet, err := Read("listings.csv", strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "상가점포", sheet.Rows[1].Get("매물종류"))
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	rows := [][]interface{}{
		{"상세주소", "매물가", "전용면적"},
		{"델타빌딩 301호", "35000", "50"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := Read("listings.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "35000", sheet.Rows[0].Get("매물가"))
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read("listings.xls", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRead_EmptyCSV(t *testing.T) {
	sheet, err := Read("empty.csv", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, sheet.Rows)
	assert.False(t, sheet.HasColumn("상세주소"))
}
