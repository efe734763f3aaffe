package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing required variable is reported, not only the first.
func Load() (*Config, error) {
	cfg := &Config{}

	l := &envLoader{lookup: os.Getenv, readFile: os.ReadFile}
	if err := l.load(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if len(l.missing) > 0 {
		return nil, fmt.Errorf("config load: required environment variables not set: %s",
			strings.Join(l.missing, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envLoader fills tagged struct fields.
//
// Tags:
//
//	env       variable name
//	envAlt    fallback variable name
//	default   value used when both are unset
//	required  "true" to report the variable as missing
//	secret    "true" to also accept <env>_FILE, a path whose content is the value
//	unit      "bytes" to accept sizes such as 10MB or 512KiB
type envLoader struct {
	lookup   func(string) string
	readFile func(string) ([]byte, error)
	missing  []string
}

func (l *envLoader) load(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := l.load(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, err := l.value(field.Tag)
		if err != nil {
			return err
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				l.missing = append(l.missing, envName)
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if field.Tag.Get("unit") == "bytes" {
			n, err := parseByteSize(value)
			if err != nil {
				return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
			}
			fieldVal.SetInt(n)
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// value resolves env, then envAlt, then <env>_FILE for secrets.
func (l *envLoader) value(tag reflect.StructTag) (string, error) {
	envName := tag.Get("env")
	if v := l.lookup(envName); v != "" {
		return v, nil
	}
	if alt := tag.Get("envAlt"); alt != "" {
		if v := l.lookup(alt); v != "" {
			return v, nil
		}
	}
	if tag.Get("secret") == "true" {
		if path := l.lookup(envName + "_FILE"); path != "" {
			data, err := l.readFile(path)
			if err != nil {
				return "", fmt.Errorf("read %s_FILE: %w", envName, err)
			}
			return strings.TrimRight(string(data), "\r\n"), nil
		}
	}
	return "", nil
}

// byteUnits are checked longest suffix first.
var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
	{"B", 1},
}

// parseByteSize parses "10485760", "10MB" or "512KiB". Units are binary.
func parseByteSize(s string) (int64, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(up, u.suffix) {
			up = strings.TrimSpace(strings.TrimSuffix(up, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(up, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	if n < 0 || n > math.MaxInt64/mult {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return n * mult, nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// ERP validation
	if u, err := url.Parse(c.ERP.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("ODOO_URL (%q) must be an absolute http(s) URL", c.ERP.URL))
	}
	if c.ERP.Timeout <= 0 {
		errs = append(errs, "ODOO_TIMEOUT must be positive")
	}

	// Transfer validation
	if c.Transfer.LocationsFile == "" {
		errs = append(errs, "LOCATIONS_FILE is required")
	}
	if _, ok := encodingNames[strings.ToLower(c.Transfer.Encoding)]; !ok {
		errs = append(errs, fmt.Sprintf("FILE_ENCODING (%q) must be one of: latin1, windows-1252, utf-8", c.Transfer.Encoding))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if !strings.HasPrefix(c.Upload.AllowedExt, ".") {
		errs = append(errs, fmt.Sprintf("UPLOAD_ALLOWED_EXT (%q) must start with a dot", c.Upload.AllowedExt))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	if c.Upload.HistorySize <= 0 {
		errs = append(errs, "UPLOAD_HISTORY_SIZE must be positive")
	}

	// Database validation (only when history is persisted)
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.HistoryRetentionDays < 0 {
			errs = append(errs, "HISTORY_RETENTION_DAYS must be non-negative")
		}
		if c.Database.HistoryRetentionDays > 0 && c.Database.PruneInterval <= 0 {
			errs = append(errs, "HISTORY_PRUNE_INTERVAL must be positive")
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// encodingNames lists the accepted FILE_ENCODING values.
var encodingNames = map[string]struct{}{
	"latin1":       {},
	"iso-8859-1":   {},
	"windows-1252": {},
	"cp1252":       {},
	"utf-8":        {},
	"utf8":         {},
}

// String returns a safe string representation of the config for logging.
// Sensitive values like passwords and database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("ERP: {URL: %q, Database: %q, Username: %q, Password: [MASKED]}, ",
		c.ERP.URL, c.ERP.Database, c.ERP.Username))
	b.WriteString(fmt.Sprintf("Transfer: {LocationsFile: %q, Encoding: %q}, ",
		c.Transfer.LocationsFile, c.Transfer.Encoding))
	b.WriteString(fmt.Sprintf("Upload: {AllowedExt: %q, MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Upload.AllowedExt, c.Upload.MaxFileSize, c.Upload.MaxConcurrent))
	if c.Database.Enabled() {
		b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d}, ", c.Database.MaxConns))
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
