package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/phasecube/internal/swarm"
)

// TickLog appends one JSON report per line to a zstd stream. It satisfies
// experiment.Observer; the first write error is kept and returned by Close.
type TickLog struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	err error
	n   int
}

func NewTickLog(path string) (*TickLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TickLog{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (l *TickLog) OnTick(r swarm.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		l.err = err
		return
	}
	if _, err := l.w.Write(b); err != nil {
		l.err = err
		return
	}
	if err := l.w.WriteByte('\n'); err != nil {
		l.err = err
		return
	}
	l.n++
}

// Count returns the number of reports written.
func (l *TickLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

func (l *TickLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return l.err
	}
	flushErr := l.w.Flush()
	encErr := l.enc.Close()
	fileErr := l.f.Close()
	l.f = nil
	for _, err := range []error{l.err, flushErr, encErr, fileErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadTickLog streams the reports of a tick log to fn in order. Returning
// an error from fn stops the read.
func ReadTickLog(path string, fn func(swarm.Report) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var r swarm.Report
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return sc.Err()
}
