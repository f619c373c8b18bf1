package ledgerservice

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartPalette colors the points chart.
type ChartPalette struct {
	Background drawing.Color
	Line       drawing.Color
	Dot        drawing.Color
	Text       drawing.Color
}

// DefaultPalette is used by PointsChart.
var DefaultPalette = ChartPalette{
	Background: drawing.ColorFromHex("1B1F24"),
	Line:       drawing.ColorFromHex("3FA36B"),
	Dot:        drawing.ColorFromHex("E3B341"),
	Text:       drawing.ColorFromHex("E6EDF3"),
}

// PointsChart renders a player's cumulative lifetime points as a PNG.
func (s *LedgerService) PointsChart(ctx context.Context, playerID int64) ([]byte, error) {
	if _, err := s.repo.GetTotals(ctx, s.db, playerID); err != nil {
		if errors.Is(err, ledgerdb.ErrPlayerNotFound) {
			return nil, shared.NotFoundf("player %d", playerID)
		}
		return nil, err
	}
	history, err := s.repo.History(ctx, s.db, playerID, 0)
	if err != nil {
		return nil, err
	}
	return RenderPointsChart(history, DefaultPalette)
}

// RenderPointsChart draws the running total of the given entries. Entries may be in any order.
// The running total never drops below zero, matching the accumulators.
func RenderPointsChart(history []ledgerdb.HistoryEntry, palette ChartPalette) ([]byte, error) {
	if len(history) == 0 {
		return renderNoDataPlaceholder(palette)
	}

	entries := make([]ledgerdb.HistoryEntry, len(history))
	copy(entries, history)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })

	// Origin point so a single entry still spans a non-zero range.
	xValues := []time.Time{entries[0].AddedAt.Add(-24 * time.Hour)}
	yValues := []float64{0}
	running, peak := 0, 0
	for _, e := range entries {
		running = max(running+e.Points, 0)
		peak = max(peak, running)
		xValues = append(xValues, e.AddedAt)
		yValues = append(yValues, float64(running))
	}

	graph := chart.Chart{
		Width:  800,
		Height: 400,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Style:          chart.Style{FontColor: palette.Text},
		},
		YAxis: chart.YAxis{
			Name:  "Points",
			Style: chart.Style{FontColor: palette.Text},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(peak, 1))},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Lifetime points",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: palette.Line,
					StrokeWidth: 2,
					DotWidth:    4,
					DotColor:    palette.Dot,
				},
			},
		},
	}

	buffer := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const msg = "No points recorded yet"

	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}},
		// Render needs a series; this one is drawn in the background color.
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: []float64{0, 1},
				YValues: []float64{0, 0},
				Style:   chart.Style{StrokeColor: palette.Background, StrokeWidth: 1},
			},
		},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	buffer := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
