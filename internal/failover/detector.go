// Package failover spots requests that nginx retried on another upstream
// after a server error, using the $upstream_status trail.
package failover

import (
	"fmt"
	"strconv"
	"strings"
)

type Mode string

const (
	// ModeTokens splits the trail into status codes and compares whole codes.
	ModeTokens Mode = "tokens"
	// ModeSubstring is the legacy heuristic: "50" and "200" anywhere in the
	// field. It also fires on codes like 150 or 1200.
	ModeSubstring Mode = "substring"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeTokens:
		return ModeTokens, nil
	case ModeSubstring:
		return ModeSubstring, nil
	}
	return "", fmt.Errorf("unknown failover match mode %q", s)
}

type Detector struct {
	Mode Mode
}

func NewDetector(mode Mode) *Detector {
	if mode == "" {
		mode = ModeTokens
	}
	return &Detector{Mode: mode}
}

// Detect reports whether the trail holds at least one 5xx attempt and at
// least one 200 attempt.
func (d *Detector) Detect(upstream string) bool {
	if d.Mode == ModeSubstring {
		return strings.Contains(upstream, "50") && strings.Contains(upstream, "200")
	}
	var failed, ok bool
	for _, code := range Codes(upstream) {
		switch {
		case code >= 500 && code <= 599:
			failed = true
		case code == 200:
			ok = true
		}
		if failed && ok {
			return true
		}
	}
	return false
}

// Codes extracts the numeric status codes from an upstream status field.
// nginx separates attempts with ", " and upstream groups with " : ";
// "-" marks an attempt without a response and is skipped.
func Codes(upstream string) []int {
	fields := strings.FieldsFunc(upstream, func(r rune) bool {
		return r == ',' || r == ':' || r == ' ' || r == '\t'
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if len(f) != 3 {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 100 {
			continue
		}
		out = append(out, n)
	}
	return out
}
