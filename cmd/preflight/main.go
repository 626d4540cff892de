// cmd/preflight/main.go
package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/alertwatcher/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := config.LoadDotEnv(); err != nil {
		warn(err.Error())
	}
	cfg := config.FromEnv()

	err := cfg.Validate()
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, config.ErrMissingWebhook) {
			fail("SLACK_WEBHOOK_URL is empty; the watcher refuses to start without an alert channel.")
			continue
		}
		fail(e.Error())
	}

	for _, raw := range cfg.WebhookURLs {
		u, perr := url.Parse(raw)
		switch {
		case perr != nil || u.Host == "":
			fail("webhook is not a URL: " + raw)
			err = multierr.Append(err, errors.New("bad webhook"))
		case u.Scheme != "https":
			warn("webhook " + u.Host + " is not https")
		default:
			ok("webhook " + u.Host)
		}
	}

	if st, serr := os.Stat(cfg.LogFile); serr != nil {
		warn("LOG_FILE " + cfg.LogFile + " not readable yet (" + serr.Error() + "); the watcher will wait for it.")
	} else if st.IsDir() {
		fail("LOG_FILE " + cfg.LogFile + " is a directory.")
		err = multierr.Append(err, errors.New("log file is a directory"))
	} else {
		ok("LOG_FILE=" + cfg.LogFile)
	}

	if cfg.Maintenance {
		warn("MAINTENANCE_MODE is on; every alert will be suppressed.")
	}

	switch {
	case cfg.Addr == "":
		ok("operator API disabled")
	case len(cfg.AdminAPIKeys) == 0:
		warn("ADMIN_API_KEYS is empty; anyone reaching " + cfg.Addr + " can toggle maintenance.")
	default:
		ok("API_ADDR=" + cfg.Addr)
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if strings.ContainsAny(k, " \t") {
				warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
				break
			}
		}
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; the alert journal is kept in memory only.")
	} else {
		ok("DATABASE_URL present")
	}

	if err != nil {
		os.Exit(1)
	}
	ok("preflight passed")
}
