package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// GenerateExpensesCSV generates a CSV file from a list of expenses.
func GenerateExpensesCSV(expenses []models.Expense) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Date", "Amount", "Project", "Vendor", "Category", "Source", "EnteredBy"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range expenses {
		row := []string{
			strconv.Itoa(expenses[i].ID),
			expenses[i].CreatedAt.Format("2006-01-02 15:04:05"),
			expenses[i].Amount.StringFixed(2),
			expenses[i].Project,
			expenses[i].Vendor,
			expenses[i].Category,
			expenses[i].Source,
			expenses[i].EnteredBy,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// exportFilename creates a filename like "expenses_month_2026-08.csv".
func exportFilename(period string) string {
	return fmt.Sprintf("expenses_%s_%s.csv", period, time.Now().Format("2006-01-02"))
}
