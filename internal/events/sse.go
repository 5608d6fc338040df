package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteSSE writes ev as one text/event-stream frame. Data is single-line JSON.
func WriteSSE(w io.Writer, ev Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", ev.ID)
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	fmt.Fprintf(&b, "data: %s\n\n", ev.Data)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteKeepAlive writes an SSE comment line.
func WriteKeepAlive(w io.Writer) error {
	_, err := io.WriteString(w, ": keep-alive\n\n")
	return err
}

// ReadSSE parses a text/event-stream and calls emit for every complete frame
// carrying data. Comments are skipped. It returns when r is exhausted.
func ReadSSE(r io.Reader, emit func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur Event
	for scanner.Scan() {
		line := scanner.Text()
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch {
		case line == "":
			if len(cur.Data) > 0 {
				cur.At = time.Now()
				var p JobPayload
				if json.Unmarshal(cur.Data, &p) == nil {
					cur.JobID = p.JobID
				}
				emit(cur)
			}
			cur = Event{}
		case field == "":
		case field == "id":
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				cur.ID = id
			}
		case field == "event":
			cur.Type = value
		case field == "data":
			cur.Data = json.RawMessage(value)
		}
	}
	return scanner.Err()
}
