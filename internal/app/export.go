package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pairwatch/internal/analytics"
	"pairwatch/internal/service"
)

// Export refreshes once and writes the aligned pair (or, with a single instrument, its
// bars and rolling statistics) as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(store, nil, nil)
	if err != nil {
		return err
	}
	snap, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	if snap.Pair != nil {
		rows := downsample(pairRows(snap.Pair), opts.MaxPoints)
		if len(rows) == 0 {
			a.Logger.Info().Msg("no aligned bars in the lookback window")
			return nil
		}
		a.Logger.Info().Str("pair", snap.Pair.Label).Int("exported", len(rows)).Msg("exporting pair")
		if opts.CSVPath != "" {
			if err := writePairCSV(opts.CSVPath, snap.Pair, rows); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			if err := writePairPNG(opts.PNGPath, snap.Pair, rows); err != nil {
				return err
			}
		}
		return nil
	}

	if len(snap.Instruments) == 0 {
		return errors.New("no instruments configured")
	}
	inst := snap.Instruments[0]
	rows := downsample(barRows(inst), opts.MaxPoints)
	if len(rows) == 0 {
		a.Logger.Info().Str("instrument", inst.Instrument).Msg("no bars in the lookback window")
		return nil
	}
	a.Logger.Info().Str("instrument", inst.Instrument).Int("exported", len(rows)).Msg("exporting bars")
	if opts.CSVPath != "" {
		if err := writeBarCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeBarPNG(opts.PNGPath, inst.Instrument, rows); err != nil {
			return err
		}
	}
	return nil
}

type pairRow struct {
	TS          time.Time
	Y           float64
	X           float64
	Spread      float64
	SpreadZ     analytics.Value
	Correlation analytics.Value
}

func pairRows(p *service.PairSnapshot) []pairRow {
	rows := make([]pairRow, p.Aligned.Len())
	for i := range rows {
		rows[i] = pairRow{TS: p.Aligned.Timestamps[i], Y: p.Aligned.Y[i], X: p.Aligned.X[i]}
		if i < len(p.Signal.Spread) {
			rows[i].Spread = p.Signal.Spread[i]
		}
		if i < len(p.Signal.SpreadZScore) {
			rows[i].SpreadZ = p.Signal.SpreadZScore[i]
		}
		if i < len(p.Signal.Correlation) {
			rows[i].Correlation = p.Signal.Correlation[i]
		}
	}
	return rows
}

type barRow struct {
	TS     time.Time
	Close  float64
	Mean   analytics.Value
	Std    analytics.Value
	ZScore analytics.Value
	Volume string
}

func barRows(inst service.InstrumentSnapshot) []barRow {
	rows := make([]barRow, len(inst.Series))
	for i, bar := range inst.Series {
		rows[i] = barRow{TS: bar.Timestamp, Close: bar.Close}
		if i < len(inst.Rolling.Mean) {
			rows[i].Mean = inst.Rolling.Mean[i]
			rows[i].Std = inst.Rolling.Std[i]
			rows[i].ZScore = inst.Rolling.ZScore[i]
		}
		if i < len(inst.Volume) && inst.Volume[i].Timestamp.Equal(bar.Timestamp) {
			rows[i].Volume = inst.Volume[i].Volume.String()
		}
	}
	return rows
}

// downsample keeps max evenly spaced rows, always including the first and last.
func downsample[T any](rows []T, max int) []T {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	if max == 1 {
		return rows[len(rows)-1:]
	}

	result := make([]T, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writePairCSV(path string, p *service.PairSnapshot, rows []pairRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"ts", p.Y, p.X, "spread", "spread_zscore", "correlation"})
	for _, r := range rows {
		records = append(records, []string{
			r.TS.UTC().Format(time.RFC3339),
			formatFloat(r.Y),
			formatFloat(r.X),
			formatFloat(r.Spread),
			csvValue(r.SpreadZ),
			csvValue(r.Correlation),
		})
	}
	return writeCSV(path, records)
}

func writeBarCSV(path string, rows []barRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"ts", "close", "mean", "std", "zscore", "volume"})
	for _, r := range rows {
		records = append(records, []string{
			r.TS.UTC().Format(time.RFC3339),
			formatFloat(r.Close),
			csvValue(r.Mean),
			csvValue(r.Std),
			csvValue(r.ZScore),
			r.Volume,
		})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}

func writePairPNG(path string, p *service.PairSnapshot, rows []pairRow) error {
	ts := make([]time.Time, len(rows))
	y := make([]float64, len(rows))
	x := make([]float64, len(rows))
	var zTS []time.Time
	var z []float64
	for i, r := range rows {
		ts[i] = r.TS
		y[i] = r.Y
		x[i] = r.X
		if r.SpreadZ.OK {
			zTS = append(zTS, r.TS)
			z = append(z, r.SpreadZ.V)
		}
	}

	series := []chart.Series{
		chart.TimeSeries{Name: p.Y, XValues: ts, YValues: y},
		chart.TimeSeries{Name: p.X, XValues: ts, YValues: x},
	}
	if len(z) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "Spread z-score",
			XValues: zTS,
			YValues: z,
			YAxis:   chart.YAxisSecondary,
		})
	}
	return renderPNG(path, "Price", "Spread z", series)
}

func writeBarPNG(path, instrument string, rows []barRow) error {
	ts := make([]time.Time, len(rows))
	closes := make([]float64, len(rows))
	var meanTS []time.Time
	var mean []float64
	for i, r := range rows {
		ts[i] = r.TS
		closes[i] = r.Close
		if r.Mean.OK {
			meanTS = append(meanTS, r.TS)
			mean = append(mean, r.Mean.V)
		}
	}

	series := []chart.Series{
		chart.TimeSeries{Name: instrument, XValues: ts, YValues: closes},
	}
	if len(mean) > 1 {
		series = append(series, chart.TimeSeries{Name: "Rolling mean", XValues: meanTS, YValues: mean})
	}
	return renderPNG(path, "Price", "", series)
}

func renderPNG(path, primary, secondary string, series []chart.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           primary,
			ValueFormatter: formatter,
		},
		Series: series,
	}
	if secondary != "" {
		graph.YAxisSecondary = chart.YAxis{
			Name:           secondary,
			ValueFormatter: formatter,
		}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvValue(v analytics.Value) string {
	if !v.OK {
		return ""
	}
	return formatFloat(v.V)
}
