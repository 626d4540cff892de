package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/watcher"
)

const usage = `usage: alertctl [-api URL] [-key KEY] <command>

commands:
  status               window totals and alert state
  alerts [N]           last N alert decisions (default 20)
  maintenance on|off   toggle maintenance mode (admin key)
`

func main() {
	api := flag.String("api", envOr("API_BASE", "http://127.0.0.1:8081"), "watcher API base URL")
	key := flag.String("key", os.Getenv("API_KEY"), "API key")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	c := &client{base: *api, key: *key, http: &http.Client{Timeout: 10 * time.Second}}
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "status":
		err = c.status()
	case "alerts":
		n := 20
		if len(args) > 1 {
			if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 {
				fmt.Fprintln(os.Stderr, "N must be a positive number")
				os.Exit(2)
			}
		}
		err = c.alerts(n)
	case "maintenance":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			flag.Usage()
			os.Exit(2)
		}
		err = c.maintenance(args[1] == "on")
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) status() error {
	var st watcher.Status
	if err := c.do(http.MethodGet, "/api/status", nil, &st); err != nil {
		return err
	}
	fmt.Printf("window:       %.0fs\n", st.WindowSeconds)
	fmt.Printf("requests:     %d (5xx: %d)\n", st.Requests, st.Errors)
	fmt.Printf("error rate:   %.2f%% (threshold %.2f%%)\n", st.ErrorRatio*100, st.Threshold*100)
	fmt.Printf("error alert:  %v\n", st.ErrorAlertActive)
	fmt.Printf("maintenance:  %v\n", st.Maintenance)
	if st.LastAlertAt != nil {
		fmt.Printf("last alert:   %s\n", st.LastAlertAt.Format(time.RFC3339))
	}
	return nil
}

func (c *client) alerts(n int) error {
	var evs []domain.AlertEvent
	if err := c.do(http.MethodGet, "/api/alerts?limit="+strconv.Itoa(n), nil, &evs); err != nil {
		return err
	}
	if len(evs) == 0 {
		fmt.Println("No alerts yet.")
		return nil
	}
	for _, ev := range evs {
		line := fmt.Sprintf("%s  %-20s %-10s", ev.At.UTC().Format("2006-01-02 15:04:05"), ev.Kind, ev.Outcome)
		if ev.Reason != "" {
			line += " " + ev.Reason
		}
		fmt.Println(line)
	}
	return nil
}

func (c *client) maintenance(on bool) error {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.do(http.MethodPost, "/api/maintenance", map[string]bool{"enabled": on}, &out); err != nil {
		return err
	}
	fmt.Println("maintenance:", out.Enabled)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
