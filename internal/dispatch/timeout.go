package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeoutSeconds applies when a timeout input is empty or absent.
const DefaultTimeoutSeconds = 120

// Timeout is a timeout input as submitted: a JSON string or number of
// seconds. It is validated only when the action runs.
type Timeout string

func (t *Timeout) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Timeout(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timeout must be a string or number: %w", err)
	}
	*t = Timeout(n.String())
	return nil
}

// Seconds resolves the timeout, substituting DefaultTimeoutSeconds for an
// empty value.
func (t Timeout) Seconds() (int, error) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return DefaultTimeoutSeconds, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	return n, nil
}

func (t Timeout) Duration() (time.Duration, error) {
	n, err := t.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
