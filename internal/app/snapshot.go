package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"pairwatch/internal/analytics"
	"pairwatch/internal/market"
	"pairwatch/internal/publish"
	"pairwatch/internal/service"
)

// Snapshot runs one refresh cycle against the store, or reads the last published one
// from Redis, and prints it.
func (a *App) Snapshot(ctx context.Context, opts SnapshotOptions) error {
	var snap service.Snapshot
	if opts.FromRedis {
		if !a.Config.Redis.Enabled {
			return errors.New("redis not enabled; cannot read published snapshot")
		}
		rdb, err := publish.NewRedis(ctx, a.Config.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if snap, err = rdb.Fetch(ctx); err != nil {
			return err
		}
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err := a.newService(store, nil, nil)
		if err != nil {
			return err
		}
		if snap, err = svc.Refresh(ctx); err != nil {
			return err
		}
	}
	return writeSnapshot(os.Stdout, snap)
}

func writeSnapshot(out io.Writer, snap service.Snapshot) error {
	fmt.Fprintf(out, "Snapshot %s  timeframe=%s window=%d lookback=%s  state=%s\n\n",
		snap.At.UTC().Format(time.RFC3339), snap.Timeframe, snap.Window, snap.Lookback, snap.State)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Instrument\tState\tTicks\tBars\tLast\tMean\tStd\tZ\tBuy\tSell\tNet")
	for _, inst := range snap.Instruments {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.Instrument,
			inst.State,
			inst.Ticks,
			inst.Bars,
			formatValue(inst.LastPrice, 4),
			formatValue(inst.Mean, 4),
			formatValue(inst.Std, 4),
			formatValue(inst.ZScore, 2),
			inst.BuyVolume.StringFixed(4),
			inst.SellVolume.StringFixed(4),
			inst.NetFlow.StringFixed(4),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	p := snap.Pair
	if p == nil {
		return nil
	}
	fmt.Fprintln(out)
	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Pair\tState\tObs\tHedge\tSpreadZ\tADF p\tStationary\tCorr")
	if p.State != service.StateReady {
		fmt.Fprintf(writer, "%s\t%s\t%d/%d\t-\t-\t-\t-\t-\n", p.Label, p.State, p.Observations, p.Required)
	} else {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%.4f\t%s\t%.4f\t%t\t%s\n",
			p.Label,
			p.State,
			p.Observations,
			p.HedgeRatio,
			formatValue(p.SpreadZScore, 2),
			p.ADFPValue,
			p.Stationary,
			formatValue(p.Correlation, 3),
		)
	}
	return writer.Flush()
}

// Ticks prints the most recent stored ticks for one instrument.
func (a *App) Ticks(ctx context.Context, opts TicksOptions) error {
	instrument := market.NormalizeInstrument(opts.Instrument)
	if instrument == "" {
		instruments := a.instruments()
		if len(instruments) == 0 {
			return errors.New("no instrument given and none configured")
		}
		instrument = instruments[0]
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var since *time.Time
	if opts.Since > 0 {
		from := time.Now().UTC().Add(-opts.Since)
		since = &from
	}
	ticks, err := store.Query(ctx, instrument, since)
	if err != nil {
		return err
	}
	return writeTicks(os.Stdout, instrument, ticks, opts.Limit)
}

func writeTicks(out io.Writer, instrument string, ticks []market.Tick, limit int) error {
	if len(ticks) == 0 {
		fmt.Fprintf(out, "no ticks found for %s\n", instrument)
		return nil
	}
	if limit > 0 && len(ticks) > limit {
		ticks = ticks[len(ticks)-limit:]
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tInstrument\tPrice\tSize\tSide")
	for _, tk := range ticks {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			tk.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			tk.Instrument,
			tk.Price.String(),
			tk.Size.String(),
			tk.Side,
		)
	}
	return writer.Flush()
}

func formatValue(v analytics.Value, places int) string {
	if !v.OK {
		return "-"
	}
	return strconv.FormatFloat(v.V, 'f', places, 64)
}
