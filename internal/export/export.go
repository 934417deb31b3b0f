// Package export produces the review workbook for locked entries: the
// mutations a supervisor has to resolve by hand after a remote conflict.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stocktake/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	reviewSheet  = "Conflicts"
	summarySheet = "Summary"
)

// WriteReviewWorkbook writes locked entries and a status summary into an
// xlsx file under dir and returns the full path.
func WriteReviewWorkbook(dir string, locked []models.QueueEntry, status models.SyncStatus, stats models.CacheStats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reviewSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Kind", "Enqueued At", "Retries", "Reason", "Payload"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reviewSheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(reviewSheet, "A1", "F1", headerStyle)

	for row, entry := range locked {
		values := []interface{}{
			entry.ID,
			entry.Kind,
			entry.EnqueuedAt.Format(time.RFC3339),
			entry.RetryCount,
			stringOrEmpty(entry.LastError),
			entry.Payload,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(reviewSheet, cell, v)
		}
	}

	_ = f.SetColWidth(reviewSheet, "A", "A", 30)
	_ = f.SetColWidth(reviewSheet, "B", "E", 18)
	_ = f.SetColWidth(reviewSheet, "F", "F", 60)

	writeSummary(f, status, stats, len(locked))

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("conflict_review_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	return path, nil
}

func writeSummary(f *excelize.File, status models.SyncStatus, stats models.CacheStats, lockedCount int) {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return
	}

	lastSync := "never"
	if status.LastSyncAt != nil {
		lastSync = status.LastSyncAt.Format(time.RFC3339)
	}

	rows := [][]interface{}{
		{"Generated", time.Now().Format(time.RFC3339)},
		{"Online", status.IsOnline},
		{"Queued operations", status.QueuedOperations},
		{"Locked conflicts", lockedCount},
		{"Cached items", stats.ItemsCount},
		{"Last sync", lastSync},
	}

	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 28)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
