package bot

import (
	"fmt"
	"time"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"
)

// GenerateSpendChart creates a pie chart of spend by project.
// Returns PNG image as bytes.
func GenerateSpendChart(byProject map[string]decimal.Decimal, title string) ([]byte, error) {
	if len(byProject) == 0 {
		return nil, fmt.Errorf("no spend to chart")
	}

	var values []float64
	var projectNames []string
	for name, total := range byProject {
		projectNames = append(projectNames, name)
		values = append(values, total.InexactFloat64())
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: title,
		}),
		charts.LegendLabelsOptionFunc(projectNames),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// chartFilename creates a filename like "spend_week_2026-08-31.png".
func chartFilename(period string) string {
	return fmt.Sprintf("spend_%s_%s.png", period, time.Now().Format("2006-01-02"))
}
