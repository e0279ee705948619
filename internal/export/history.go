package export

import (
	"bytes"
	"fmt"
	"time"

	"tablequeue/internal/models"

	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var historyHeaders = []string{
	"Queue #", "Table type", "Table", "Customer", "Requirements", "Joined", "Completed", "Minutes at shop",
}

// QueueHistoryXLSX renders archived queue entries as a workbook. Table type
// ids are shown by name when tableTypes has them.
func QueueHistoryXLSX(history []*models.QueueHistory, tableTypes []*models.TableType, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	names := make(map[string]string, len(tableTypes))
	for _, tt := range tableTypes {
		names[tt.ID] = tt.Type
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
		_ = f.SetCellStyle(historySheet, cell, cell, headerStyle)
	}

	for i, h := range history {
		row := i + 2
		typeName := names[h.TableTypeID]
		if typeName == "" {
			typeName = h.TableTypeID
		}
		values := []any{
			h.QueueNumber,
			typeName,
			h.TableNo,
			h.CustomerID,
			h.UserRequirements,
			h.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			h.CompletedAt.In(loc).Format("2006-01-02 15:04"),
			int(h.CompletedAt.Sub(h.CreatedAt).Minutes()),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(historySheet, cell, v)
		}
	}

	_ = f.SetColWidth(historySheet, "A", "A", 10)
	_ = f.SetColWidth(historySheet, "B", "E", 20)
	_ = f.SetColWidth(historySheet, "F", "H", 18)
	_ = f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
