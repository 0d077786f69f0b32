// Package eventlog reads HTTP transaction events from a JSON-lines stream,
// one object per line:
//
//	{"ts":"2024-05-01T12:00:00Z","src":"10.0.0.1","dst":"93.184.216.34","host":"example.com","uri":"/","method":"GET","status":302,"location":"http://example.com/next"}
//
// Blank lines and lines starting with '#' are skipped.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

// maxLine bounds a single event line.
const maxLine = 1 << 20

type wireEvent struct {
	Time     time.Time `json:"ts"`
	Src      string    `json:"src"`
	Dst      string    `json:"dst"`
	Host     string    `json:"host"`
	URI      string    `json:"uri"`
	Method   string    `json:"method"`
	Status   int       `json:"status"`
	Location string    `json:"location"`
}

// Decoder is not safe for concurrent use.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
	err     error
}

// NewDecoder reads events from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Decoder{scanner: s}
}

// Line returns the number of the line last read.
func (d *Decoder) Line() int { return d.line }

// Err returns the read error that stopped the stream, if any. Once set,
// Next keeps returning it.
func (d *Decoder) Err() error { return d.err }

// Next returns the next event, or io.EOF when the stream is exhausted.
// A malformed line yields an error naming the line; decoding may continue
// with the following line.
func (d *Decoder) Next() (domain.Event, error) {
	if d.err != nil {
		return domain.Event{}, d.err
	}
	for d.scanner.Scan() {
		d.line++
		raw := bytes.TrimSpace(d.scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		return d.decode(raw)
	}
	if err := d.scanner.Err(); err != nil {
		d.err = fmt.Errorf("eventlog: line %d: %w", d.line+1, err)
		return domain.Event{}, d.err
	}
	return domain.Event{}, io.EOF
}

func (d *Decoder) decode(raw []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Event{}, fmt.Errorf("eventlog: line %d: %w", d.line, err)
	}
	src, err := netip.ParseAddr(w.Src)
	if err != nil {
		return domain.Event{}, fmt.Errorf("eventlog: line %d: src: %w", d.line, err)
	}
	dst, err := netip.ParseAddr(w.Dst)
	if err != nil {
		return domain.Event{}, fmt.Errorf("eventlog: line %d: dst: %w", d.line, err)
	}
	return domain.Event{
		Time:     w.Time,
		Src:      src,
		Dst:      dst,
		Host:     w.Host,
		URI:      w.URI,
		Method:   w.Method,
		Status:   w.Status,
		Location: w.Location,
	}, nil
}
