package providers

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one parsed server-sent event from an upstream stream.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEScanner reads server-sent events line by line from an upstream
// response body. Comment lines and unknown fields are skipped.
type SSEScanner struct {
	scanner *bufio.Scanner

	event SSEEvent
	err   error
}

// NewSSEScanner wraps an upstream stream body. The caller still owns
// closing r.
func NewSSEScanner(r io.Reader) *SSEScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: sc}
}

// Next advances to the next complete event. It returns false at end of
// stream or on read error; check Err afterwards.
func (s *SSEScanner) Next() bool {
	var event, data string
	sawData := false

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Blank line terminates an event.
		if line == "" {
			if sawData {
				s.event = SSEEvent{Event: event, Data: data}
				return true
			}
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(value)
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			if sawData {
				data += "\n"
			}
			data += strings.TrimSpace(value)
			sawData = true
			continue
		}
	}

	if err := s.scanner.Err(); err != nil {
		s.err = err
	} else if sawData {
		// Final event without trailing blank line.
		s.event = SSEEvent{Event: event, Data: data}
		return true
	}
	return false
}

// Event returns the event parsed by the last successful Next call.
func (s *SSEScanner) Event() SSEEvent {
	return s.event
}

// Err returns the read error that terminated the stream, if any.
func (s *SSEScanner) Err() error {
	return s.err
}
