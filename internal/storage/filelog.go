package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pairwatch/internal/market"
)

var fileLogHeader = []string{"ts", "symbol", "price", "size", "side"}

// FileLog is a flat CSV tick log. Writers are serialised; readers see only whole rows.
type FileLog struct {
	path  string
	fsync bool

	mu   sync.RWMutex
	file *os.File
	w    *csv.Writer
}

// OpenFileLog opens (creating if needed) the tick log at path.
func OpenFileLog(path string, fsync bool) (*FileLog, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.path is required for the file driver")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tick log dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tick log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat tick log: %w", err)
	}

	log := &FileLog{path: path, fsync: fsync, file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := log.writeRow(fileLogHeader); err != nil {
			file.Close()
			return nil, err
		}
		return log, nil
	}
	if err := terminateTornRow(file, info.Size()); err != nil {
		file.Close()
		return nil, err
	}
	return log, nil
}

// terminateTornRow closes a partial last row left by an interrupted write so
// the next append starts on its own line.
func terminateTornRow(file *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("read tick log tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("terminate torn tick row: %w", err)
	}
	return nil
}

// Path returns the log location.
func (l *FileLog) Path() string {
	return l.path
}

// Append writes one tick to the end of the log.
func (l *FileLog) Append(ctx context.Context, tick market.Tick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateTick(tick); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrNotConfigured
	}
	return l.writeRow(RecordFromTick(tick).fields())
}

func (l *FileLog) writeRow(fields []string) error {
	if err := l.w.Write(fields); err != nil {
		return fmt.Errorf("append tick: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush tick log: %w", err)
	}
	if l.fsync {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("sync tick log: %w", err)
		}
	}
	return nil
}

// Query returns the ticks of one instrument at or after since, ascending by timestamp.
func (l *FileLog) Query(ctx context.Context, instrument string, since *time.Time) ([]market.Tick, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return collect(records, market.NormalizeInstrument(instrument), since), nil
}

func (l *FileLog) readAll(ctx context.Context) ([]TickRecord, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open tick log for read: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	records := make([]TickRecord, 0, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read tick log: %w", err)
		}
		if len(fields) > 0 && fields[0] == fileLogHeader[0] {
			continue
		}
		rec, err := recordFromFields(fields)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close flushes and releases the log file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.w.Flush()
	err := l.file.Close()
	l.file = nil
	return err
}

var _ TickStore = (*FileLog)(nil)
