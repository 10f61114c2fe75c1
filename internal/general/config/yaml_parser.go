package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// parseYAML parses the restricted two-level "section: / key: value" subset
// used by config.yaml. No external YAML dependency is needed for this shape.
func parseYAML(r io.Reader, cfg *Config) error {
	sections, err := scanSections(r)
	if err != nil {
		return err
	}

	for name, kv := range sections {
		var err error
		switch name {
		case "server":
			err = applyKV(kv, map[string]setter{
				"base_url": setString(&cfg.Server.BaseURL),
			})
		case "realtime":
			err = applyKV(kv, map[string]setter{
				"url":                    setString(&cfg.Realtime.URL),
				"max_reconnect_attempts": setInt(&cfg.Realtime.MaxReconnectAttempts),
				"reconnect_delay_ms":     setDurationMs(&cfg.Realtime.ReconnectDelay),
				"reconnect_delay_cap_ms": setDurationMs(&cfg.Realtime.ReconnectDelayCap),
			})
		case "location":
			err = applyKV(kv, map[string]setter{
				"min_interval_seconds":    setDurationSec(&cfg.Location.MinInterval),
				"min_displacement_meters": setFloat(&cfg.Location.MinDisplacement),
			})
		case "credentials":
			err = applyKV(kv, map[string]setter{
				"token_file": setString(&cfg.Credentials.TokenFile),
			})
		case "rabbitmq":
			err = applyKV(kv, map[string]setter{
				"host":     setString(&cfg.RabbitMQ.Host),
				"port":     setInt(&cfg.RabbitMQ.Port),
				"user":     setString(&cfg.RabbitMQ.User),
				"password": setString(&cfg.RabbitMQ.Password),
			})
		case "database":
			err = applyKV(kv, map[string]setter{
				"host":     setString(&cfg.Database.Host),
				"port":     setInt(&cfg.Database.Port),
				"user":     setString(&cfg.Database.User),
				"password": setString(&cfg.Database.Password),
				"database": setString(&cfg.Database.Name),
			})
		case "jwt":
			err = applyKV(kv, map[string]setter{
				"secret_key": setString(&cfg.JWT.SecretKey),
			})
		case "dispatchd":
			err = applyKV(kv, map[string]setter{
				"port":              setInt(&cfg.Dispatchd.Port),
				"default_radius_km": setFloat(&cfg.Dispatchd.DefaultRadiusKm),
			})
		default:
			return fmt.Errorf("unknown top-level section %q", name)
		}
		if err != nil {
			return fmt.Errorf("section %q: %w", name, err)
		}
	}

	return nil
}

// scanSections reads the file into section -> key -> raw value.
func scanSections(r io.Reader) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	scanner := bufio.NewScanner(r)

	var cur string
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// unindented line opens a section
		if line[0] != ' ' && line[0] != '\t' {
			name := strings.TrimSuffix(strings.TrimSpace(line), ":")
			if name == strings.TrimSpace(line) {
				return nil, fmt.Errorf("line %d: expected 'section:'", lineNo)
			}
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("line %d: duplicate section %q", lineNo, name)
			}
			out[name] = make(map[string]string)
			cur = name
			continue
		}

		if cur == "" {
			return nil, fmt.Errorf("line %d: key without a section", lineNo)
		}

		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return nil, fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		out[cur][key] = unquote(strings.TrimSpace(trim[colon+1:]))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type setter func(string) error

func applyKV(kv map[string]string, setters map[string]setter) error {
	for key, val := range kv {
		set, ok := setters[key]
		if !ok {
			return fmt.Errorf("unknown key %q", key)
		}
		if err := set(val); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

func setString(dst *string) setter {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) setter {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) setter {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("must be a number: %w", err)
		}
		*dst = f
		return nil
	}
}

func setDurationMs(dst *time.Duration) setter {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("must be milliseconds as an integer: %w", err)
		}
		*dst = time.Duration(n) * time.Millisecond
		return nil
	}
}

func setDurationSec(dst *time.Duration) setter {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("must be seconds as an integer: %w", err)
		}
		*dst = time.Duration(n) * time.Second
		return nil
	}
}

// unquote removes surrounding "..." or '...' from YAML-like scalars.
func unquote(s string) string {
	n := len(s)
	if n >= 2 && ((s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'')) {
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
		return s[1 : n-1]
	}
	return s
}
