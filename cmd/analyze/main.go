// analyze is a standalone reporting tool: it reads persisted compliance
// reports from MySQL, ranks the brands found on delivery packages and renders
// the distribution as a histogram PNG.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// BrandStats counts how often one brand appeared in violations
type BrandStats struct {
	Brand string
	Count int
}

// violationRow mirrors the JSON stored in the violations column
type violationRow struct {
	Type          string `json:"type"`
	BrandDetected string `json:"brand_detected"`
}

// BrandAnalyzer aggregates violation records from the reports database
type BrandAnalyzer struct {
	db *sql.DB
}

// NewBrandAnalyzer opens and verifies the database connection
func NewBrandAnalyzer(dsn string) (*BrandAnalyzer, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %v", err)
	}

	fmt.Println("✓ Database connection established")
	return &BrandAnalyzer{db: db}, nil
}

// FetchBrands reads every stored violation and extracts the detected brands
func (ba *BrandAnalyzer) FetchBrands() ([]string, error) {
	query := "SELECT violations FROM report_records WHERE violations IS NOT NULL"
	rows, err := ba.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %v", err)
	}
	defer rows.Close()

	var allBrands []string
	recordCount := 0

	for rows.Next() {
		var violationsJSON string
		if err := rows.Scan(&violationsJSON); err != nil {
			log.Printf("failed to scan row: %v", err)
			continue
		}

		recordCount++

		var violations []violationRow
		if err := json.Unmarshal([]byte(violationsJSON), &violations); err != nil {
			log.Printf("failed to parse violations JSON: %v, data: %s", err, violationsJSON)
			continue
		}

		for _, v := range violations {
			if v.BrandDetected != "" {
				allBrands = append(allBrands, v.BrandDetected)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate result set: %v", err)
	}

	fmt.Printf("Fetched %d non-compliant reports\n", recordCount)
	fmt.Printf("Extracted %d brand occurrences (including duplicates)\n", len(allBrands))

	return allBrands, nil
}

// PrintScoreDistribution buckets all compliance scores into deciles and
// prints them as a text histogram.
func (ba *BrandAnalyzer) PrintScoreDistribution() error {
	rows, err := ba.db.Query("SELECT compliance_score FROM report_records")
	if err != nil {
		return fmt.Errorf("query failed: %v", err)
	}
	defer rows.Close()

	var buckets [10]int
	total := 0
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			log.Printf("failed to scan row: %v", err)
			continue
		}
		idx := int(score / 10)
		if idx > 9 {
			idx = 9
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx]++
		total++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate result set: %v", err)
	}
	if total == 0 {
		fmt.Println("⚠ No score data found!")
		return nil
	}

	fmt.Printf("\nCompliance score distribution (%d reports):\n", total)
	for i, count := range buckets {
		bar := ""
		for j := 0; j < count*50/total; j++ {
			bar += "█"
		}
		fmt.Printf("%3d-%3d : %6d %s\n", i*10, i*10+10, count, bar)
	}
	return nil
}

// AnalyzeBrands ranks brands by violation frequency and returns the top N
func (ba *BrandAnalyzer) AnalyzeBrands(brands []string, topN int) []BrandStats {
	countMap := make(map[string]int)
	for _, brand := range brands {
		countMap[brand]++
	}

	stats := make([]BrandStats, 0, len(countMap))
	for brand, count := range countMap {
		stats = append(stats, BrandStats{
			Brand: brand,
			Count: count,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	if len(stats) > topN {
		stats = stats[:topN]
	}

	fmt.Printf("\nDistinct brands: %d\n", len(countMap))
	fmt.Printf("\nBrand violation frequency (Top %d):\n", len(stats))
	for i := 0; i < 60; i++ {
		fmt.Print("-")
	}
	fmt.Println()

	for i, stat := range stats {
		fmt.Printf("%2d. %-30s : %6d times\n", i+1, stat.Brand, stat.Count)
	}

	for i := 0; i < 60; i++ {
		fmt.Print("-")
	}
	fmt.Println()

	return stats
}

// GetLabelFont loads a system TrueType font for chart labels
func GetLabelFont() (*truetype.Font, error) {
	fontPaths := []string{
		// Linux
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
		// macOS
		"/System/Library/Fonts/Helvetica.ttc",
		"/Library/Fonts/Arial.ttf",
		// Windows
		"C:/Windows/Fonts/arial.ttf",
	}

	for _, path := range fontPaths {
		if fontData, err := os.ReadFile(path); err == nil {
			font, err := truetype.Parse(fontData)
			if err == nil {
				fmt.Printf("✓ Using font: %s\n", path)
				return font, nil
			}
		}
	}

	return nil, fmt.Errorf("no usable system font found")
}

// PlotHistogram renders the brand frequencies as a bar chart PNG
func (ba *BrandAnalyzer) PlotHistogram(stats []BrandStats, savePath string) error {
	font, err := GetLabelFont()
	if err != nil {
		log.Printf("warning: %v, falling back to the default font", err)
		font = nil
	}

	xValues := make([]float64, len(stats))
	yValues := make([]float64, len(stats))
	labels := make([]string, len(stats))

	maxValue := 0.0
	for i, stat := range stats {
		xValues[i] = float64(i)
		yValues[i] = float64(stat.Count)
		labels[i] = stat.Brand
		if yValues[i] > maxValue {
			maxValue = yValues[i]
		}
	}

	titleStyle := chart.Style{
		FontSize: 18,
	}
	if font != nil {
		titleStyle.Font = font
	}

	yAxisStyle := chart.Style{
		FontSize: 10,
	}
	if font != nil {
		yAxisStyle.Font = font
	}

	yAxisNameStyle := chart.Style{
		FontSize: 14,
	}
	if font != nil {
		yAxisNameStyle.Font = font
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Brand Violation Frequency (Top %d)", len(stats)),
		TitleStyle: titleStyle,
		Width:      2400,
		Height:     1000,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    60,
				Left:   100,
				Right:  40,
				Bottom: 180,
			},
		},
		XAxis: chart.XAxis{
			Ticks: generateTicks(labels, font),
		},
		YAxis: chart.YAxis{
			Name:      "Violations",
			NameStyle: yAxisNameStyle,
			Style:     yAxisStyle,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style: chart.Style{
					StrokeWidth: 0,
					FillColor:   drawing.ColorTransparent,
				},
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	graph.Elements = []chart.Renderable{
		func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
			barWidth := 30.0
			canvasWidth := float64(canvasBox.Width())
			canvasHeight := float64(canvasBox.Height())

			for i, stat := range stats {
				xRatio := float64(i) / float64(len(stats)-1)
				if len(stats) == 1 {
					xRatio = 0.5
				}
				yRatio := float64(stat.Count) / maxValue

				centerX := canvasBox.Left + int(xRatio*canvasWidth)
				barLeft := centerX - int(barWidth/2)
				barRight := centerX + int(barWidth/2)
				barTop := canvasBox.Top + int((1-yRatio)*canvasHeight)
				barBottom := canvasBox.Bottom

				intensity := uint8(80 + (175 * i / len(stats)))
				barColor := drawing.Color{R: 50, G: 100, B: intensity, A: 255}

				r.SetFillColor(barColor)
				r.SetStrokeColor(drawing.ColorBlack)
				r.SetStrokeWidth(0.5)

				r.MoveTo(barLeft, barTop)
				r.LineTo(barRight, barTop)
				r.LineTo(barRight, barBottom)
				r.LineTo(barLeft, barBottom)
				r.LineTo(barLeft, barTop)
				r.FillStroke()

				if font != nil {
					r.SetFont(font)
				}
				r.SetFontSize(8)
				r.SetFillColor(drawing.ColorBlack)

				label := fmt.Sprintf("%d", stat.Count)
				textBox := r.MeasureText(label)
				textX := centerX - textBox.Width()/2
				textY := barTop - 5

				r.Text(label, textX, textY)
			}
		},
	}

	f, err := os.Create(savePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render chart: %v", err)
	}

	fmt.Printf("\n✓ Histogram saved to: %s\n", savePath)
	return nil
}

// generateTicks builds rotated X axis labels, one per brand
func generateTicks(labels []string, font *truetype.Font) []chart.Tick {
	ticks := make([]chart.Tick, len(labels))

	tickStyle := chart.Style{
		FontSize:            8,
		TextRotationDegrees: 60.0,
	}
	if font != nil {
		tickStyle.Font = font
	}

	for i, label := range labels {
		ticks[i] = chart.Tick{
			Value: float64(i),
			Label: label,
		}
	}

	return ticks
}

// Close closes the database connection
func (ba *BrandAnalyzer) Close() error {
	if ba.db != nil {
		fmt.Println("\nDatabase connection closed")
		return ba.db.Close()
	}
	return nil
}

// Run executes the full analysis flow
func (ba *BrandAnalyzer) Run(topN int, savePath string) error {
	fmt.Println("============================================================")
	fmt.Println("                 Brand violation analysis                  ")
	fmt.Println("============================================================")

	if err := ba.PrintScoreDistribution(); err != nil {
		return err
	}

	brands, err := ba.FetchBrands()
	if err != nil {
		return err
	}

	if len(brands) == 0 {
		fmt.Println("⚠ No brand violation data found!")
		return nil
	}

	stats := ba.AnalyzeBrands(brands, topN)

	if err := ba.PlotHistogram(stats, savePath); err != nil {
		return err
	}

	fmt.Println("============================================================")
	fmt.Println("                     Analysis complete                      ")
	fmt.Println("============================================================")

	return nil
}

func main() {
	dsn := flag.String("dsn", "root:@tcp(127.0.0.1:3306)/packwatch?charset=utf8mb4&parseTime=True&timeout=10s",
		"MySQL DSN of the reports database")
	topN := flag.Int("top", 25, "number of brands to include")
	output := flag.String("output", "brands_histogram.png", "output PNG path")
	flag.Parse()

	analyzer, err := NewBrandAnalyzer(*dsn)
	if err != nil {
		log.Fatalf("❌ failed to create analyzer: %v", err)
	}
	defer analyzer.Close()

	if err := analyzer.Run(*topN, *output); err != nil {
		log.Fatalf("❌ analysis failed: %v", err)
	}
}
