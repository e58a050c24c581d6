package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pairwatch/internal/analytics"
	"pairwatch/internal/config"
	"pairwatch/internal/service"
)

// ErrNoSnapshot is returned by Fetch when nothing has been published yet.
var ErrNoSnapshot = errors.New("publish: no snapshot in redis")

// Redis writes snapshots under <prefix>:snapshot and one hash per instrument.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "pairwatch"
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: cfg.TTL}, nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func snapshotKey(prefix string) string { return prefix + ":snapshot" }
func instrumentKey(prefix, instrument string) string {
	return fmt.Sprintf("%s:instrument:%s", prefix, instrument)
}
func pairKey(prefix, label string) string { return fmt.Sprintf("%s:pair:%s", prefix, label) }

// Publish stores the snapshot atomically in one MULTI/EXEC.
func (r *Redis) Publish(ctx context.Context, snap service.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(r.prefix), body, r.ttl)
		for _, inst := range snap.Instruments {
			key := instrumentKey(r.prefix, inst.Instrument)
			pipe.HSet(ctx, key, instrumentFields(snap, inst))
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		if p := snap.Pair; p != nil {
			key := pairKey(r.prefix, p.Label)
			pipe.HSet(ctx, key, pairFields(snap, p))
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Fetch reads back the last published snapshot.
func (r *Redis) Fetch(ctx context.Context) (service.Snapshot, error) {
	raw, err := r.rdb.Get(ctx, snapshotKey(r.prefix)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return service.Snapshot{}, ErrNoSnapshot
		}
		return service.Snapshot{}, fmt.Errorf("redis get snapshot: %w", err)
	}
	var snap service.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return service.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func instrumentFields(snap service.Snapshot, inst service.InstrumentSnapshot) map[string]any {
	return map[string]any{
		"at":          snap.At.Format(time.RFC3339Nano),
		"state":       string(inst.State),
		"ticks":       strconv.Itoa(inst.Ticks),
		"bars":        strconv.Itoa(inst.Bars),
		"last_price":  formatValue(inst.LastPrice),
		"mean":        formatValue(inst.Mean),
		"std":         formatValue(inst.Std),
		"zscore":      formatValue(inst.ZScore),
		"buy_volume":  inst.BuyVolume.String(),
		"sell_volume": inst.SellVolume.String(),
		"net_flow":    inst.NetFlow.String(),
	}
}

func pairFields(snap service.Snapshot, p *service.PairSnapshot) map[string]any {
	return map[string]any{
		"at":            snap.At.Format(time.RFC3339Nano),
		"state":         string(p.State),
		"observations":  strconv.Itoa(p.Observations),
		"hedge_ratio":   strconv.FormatFloat(p.HedgeRatio, 'f', -1, 64),
		"spread_zscore": formatValue(p.SpreadZScore),
		"adf_pvalue":    strconv.FormatFloat(p.ADFPValue, 'f', -1, 64),
		"stationary":    strconv.FormatBool(p.Stationary),
		"correlation":   formatValue(p.Correlation),
	}
}

// formatValue renders undefined values as an empty string.
func formatValue(v analytics.Value) string {
	if !v.OK {
		return ""
	}
	return strconv.FormatFloat(v.V, 'f', -1, 64)
}

var _ service.Publisher = (*Redis)(nil)
