// Package stream bridges a fragment producer to a line-delimited event stream
// consumed by a remote client. Each fragment becomes exactly one
// "data: {json}" line; the stream always attempts to terminate with the
// literal sentinel line so a reader is never left blocked.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// Sentinel is the literal end-of-stream marker. It is deliberately not valid
// JSON; clients must special-case it before decoding.
const Sentinel = "data: [DONE]\n\n"

// Relay forwards fragments from events to w in arrival order, flushing after
// every write so the client observes incremental progress. It returns the
// number of fragments written and the first error encountered.
//
// Termination rules:
//   - channel closed: write sentinel, return nil error
//   - producer error: stop forwarding, still write the sentinel
//   - context canceled: same as producer error
//   - sink write failure: stop immediately; the transport is gone, so no
//     sentinel is attempted
//
// A fragment that cannot be framed is dropped and the stream continues: this
// is a best-effort assistant channel where losing one fragment beats killing
// the stream.
func Relay(ctx context.Context, events <-chan adapter.StreamEvent, w io.Writer) (int, error) {
	flusher, _ := w.(http.Flusher)
	written := 0
	for {
		select {
		case <-ctx.Done():
			writeSentinel(w, flusher)
			return written, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				writeSentinel(w, flusher)
				return written, nil
			}
			if ev.Error != nil {
				writeSentinel(w, flusher)
				return written, ev.Error
			}
			if ev.Fragment == nil {
				continue
			}
			line, err := Frame(ev.Fragment)
			if err != nil {
				continue
			}
			if _, err := w.Write(line); err != nil {
				return written, err
			}
			written++
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// Frame encodes one fragment as a single SSE data line.
func Frame(fragment *nutrition.StreamFragment) ([]byte, error) {
	payload, err := json.Marshal(fragment)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(payload)+8)
	line = append(line, "data: "...)
	line = append(line, payload...)
	line = append(line, "\n\n"...)
	return line, nil
}

// writeSentinel is best effort: if the sink already failed there is nothing
// left to signal.
func writeSentinel(w io.Writer, flusher http.Flusher) {
	if _, err := io.WriteString(w, Sentinel); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}
