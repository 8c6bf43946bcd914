package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := *Defaults()
	cfg.SQLiteDBPath = "./test.db"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "valid sqlite and amqp recorders",
			mutate: func(c *Config) {
				c.RecorderBackends = []string{RecorderSQLite, RecorderAMQP}
			},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errorString: "invalid log level 'loud'",
		},
		{
			name:        "zero rate limit",
			mutate:      func(c *Config) { c.RateLimit = 0 },
			wantErr:     true,
			errorString: "invalid rate limit 0",
		},
		{
			name:        "invalid session backend",
			mutate:      func(c *Config) { c.SessionBackend = "disk" },
			wantErr:     true,
			errorString: "invalid session backend 'disk'",
		},
		{
			name:        "invalid sweep schedule",
			mutate:      func(c *Config) { c.SessionSweepCron = "sometimes" },
			wantErr:     true,
			errorString: "invalid session sweep schedule 'sometimes'",
		},
		{
			name: "redis sessions need an address",
			mutate: func(c *Config) {
				c.SessionBackend = SessionRedis
				c.RedisAddr = ""
			},
			wantErr:     true,
			errorString: "Redis address cannot be empty",
		},
		{
			name:        "session ttl too short",
			mutate:      func(c *Config) { c.SessionTTL = time.Second },
			wantErr:     true,
			errorString: "invalid session ttl 1s",
		},
		{
			name:        "unknown recorder",
			mutate:      func(c *Config) { c.RecorderBackends = []string{"kafka"} },
			wantErr:     true,
			errorString: "invalid recorder backend 'kafka'",
		},
		{
			name: "sqlite recorder without path",
			mutate: func(c *Config) {
				c.RecorderBackends = []string{RecorderSQLite}
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "invalid AMQP scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name: "amqp recorder without queue",
			mutate: func(c *Config) {
				c.RecorderBackends = []string{RecorderAMQP}
				c.AMQPQueue = ""
			},
			wantErr:     true,
			errorString: "AMQP queue name cannot be empty",
		},
		{
			name: "sheets recorder without spreadsheet",
			mutate: func(c *Config) {
				c.RecorderBackends = []string{RecorderSheets}
				c.GoogleServiceAccountJSON = "{}"
			},
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required",
		},
		{
			name:        "invalid default currency",
			mutate:      func(c *Config) { c.DefaultCurrency = "BTC" },
			wantErr:     true,
			errorString: "invalid default currency 'BTC'",
		},
		{
			name:        "invalid calculator defaults",
			mutate:      func(c *Config) { c.DefaultTerm = 0 },
			wantErr:     true,
			errorString: "invalid calculator defaults",
		},
		{
			name:        "export batch too large",
			mutate:      func(c *Config) { c.ExportBatchSize = 5000 },
			wantErr:     true,
			errorString: "invalid export batch size 5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "x"
	cfg.SessionBackend = "disk"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "configuration validation failed:") {
		t.Errorf("unexpected prefix: %v", err)
	}
	if strings.Count(err.Error(), "\n- ") != 2 {
		t.Errorf("expected two listed problems, got: %v", err)
	}
}

func TestConfig_ValidateWithFiles(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(creds, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	cfg.RecorderBackends = []string{RecorderSheets, RecorderSQLite}
	cfg.GoogleSpreadsheetID = "sheet-id"
	cfg.GoogleServiceAccountFile = creds
	cfg.SQLiteDBPath = filepath.Join(dir, "nested", "planner.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); err != nil {
		t.Errorf("expected sqlite directory to be created: %v", err)
	}

	cfg.GoogleServiceAccountFile = filepath.Join(dir, "missing.json")
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing file error, got %v", err)
	}
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	yamlDoc := `
port: "9000"
log_level: debug
session_ttl: 30m
recorder_backends: [sqlite]
default_principal: 150000
default_term: 10
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("RECORDER_BACKENDS", "sqlite, AMQP ,sqlite")
	t.Setenv("DEFAULT_RATE", "3,5")
	t.Setenv("SECURE_COOKIES", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want env override 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" || cfg.SessionTTL != 30*time.Minute {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if len(cfg.RecorderBackends) != 2 || !cfg.HasRecorder(RecorderAMQP) || !cfg.HasRecorder(RecorderSQLite) {
		t.Errorf("RecorderBackends = %v", cfg.RecorderBackends)
	}
	if cfg.DefaultPrincipal != 150000 || cfg.DefaultTerm != 10 || cfg.DefaultRate != 3.5 {
		t.Errorf("calculator defaults = %v %v %v", cfg.DefaultPrincipal, cfg.DefaultRate, cfg.DefaultTerm)
	}
	if !cfg.SecureCookies || cfg.RateLimit != 60 {
		t.Errorf("SecureCookies = %v, RateLimit = %d", cfg.SecureCookies, cfg.RateLimit)
	}
	if cfg.AMQPQueue != "calculations" {
		t.Errorf("unset values should keep defaults, got queue %q", cfg.AMQPQueue)
	}
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	terms, cur := cfg.CalculatorDefaults()
	if terms.Principal != 300000 || terms.AnnualRate != 5 || terms.Term != 25 || cur != "NOK" {
		t.Errorf("unexpected defaults %+v %s", terms, cur)
	}
}

func TestLoadFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_ValidateWorker(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateWorker(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.AMQPURL = ""
	if err := cfg.ValidateWorker(); err == nil || !strings.Contains(err.Error(), "AMQP URL is required") {
		t.Fatalf("expected AMQP error, got %v", err)
	}
}
