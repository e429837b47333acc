package adapter

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxEventLine = 1 << 20

// sseFrame is one dispatched server-sent event.
type sseFrame struct {
	Event string
	Data  string
	// ID is the last event id seen on the stream, which persists across
	// frames until the server changes it.
	ID    string
	Retry time.Duration
}

// sseReader splits a text/event-stream body into frames.
//
// Comment lines are skipped, data lines are joined with "\n", a frame with
// no data lines is discarded and a frame without an event field is named
// "message".
type sseReader struct {
	scanner *bufio.Scanner
	lastID  string
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return &sseReader{scanner: scanner}
}

// Next returns the next frame. It returns io.EOF when the stream ends, and
// drops a trailing frame that was not terminated by a blank line.
func (r *sseReader) Next() (sseFrame, error) {
	var (
		event string
		data  strings.Builder
		retry time.Duration
		// hasData differs from data.Len() > 0 for "data:" with an empty value
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !hasData {
				event, retry = "", 0
				continue
			}
			if event == "" {
				event = "message"
			}
			return sseFrame{
				Event: event,
				Data:  strings.TrimSuffix(data.String(), "\n"),
				ID:    r.lastID,
				Retry: retry,
			}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return sseFrame{}, err
	}
	return sseFrame{}, io.EOF
}
