package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"planner/internal/amqp"
	"planner/internal/config"
	gsheet "planner/internal/sheets/google"
	"planner/internal/storage"
)

// Backend names accepted in RECORDER_BACKENDS.
type Backend string

const (
	SQLiteBackend Backend = config.RecorderSQLite
	AMQPBackend   Backend = config.RecorderAMQP
	SheetsBackend Backend = config.RecorderSheets
)

func (b Backend) String() string {
	return string(b)
}

func (b Backend) IsValid() bool {
	switch b {
	case SQLiteBackend, AMQPBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// Result is the assembled recorder plus the concrete clients the caller
// may want for health checks.
type Result struct {
	Recorder Recorder
	SQLite   *storage.SQLiteRepository
	AMQP     *amqp.Client
	Backends []Backend
}

// NewFromConfig opens every backend named in cfg.RecorderBackends. With no
// backends the result records nothing. If one backend fails to open, the
// ones already opened are closed and the error is returned.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{}
	var recorders Multi
	fail := func(err error) (*Result, error) {
		if cerr := recorders.Close(); cerr != nil {
			logger.Warn("Failed to close journal backends", "error", cerr)
		}
		return nil, err
	}

	for _, name := range cfg.RecorderBackends {
		b := Backend(name)
		if !b.IsValid() {
			return fail(fmt.Errorf("invalid recorder backend: %s", name))
		}

		switch b {
		case SQLiteBackend:
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return fail(fmt.Errorf("failed to initialize SQLite journal: %w", err))
			}
			res.SQLite = repo
			recorders = append(recorders, repo)
			logger.Info("Initialized SQLite journal", "db_path", cfg.SQLiteDBPath)

		case AMQPBackend:
			client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return fail(fmt.Errorf("failed to initialize AMQP client: %w", err))
			}
			res.AMQP = client
			recorders = append(recorders, amqpRecorder{p: client})
			logger.Info("Initialized AMQP journal publisher",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)

		case SheetsBackend:
			client, err := gsheet.New(ctx, SheetsOptions(cfg))
			if err != nil {
				return fail(fmt.Errorf("failed to initialize Google Sheets exporter: %w", err))
			}
			recorders = append(recorders, client)
			logger.Info("Initialized Google Sheets journal")
		}
		res.Backends = append(res.Backends, b)
	}

	switch len(recorders) {
	case 0:
		res.Recorder = Noop{}
		logger.Info("Calculation journal disabled")
	case 1:
		res.Recorder = recorders[0]
	default:
		res.Recorder = recorders
	}
	return res, nil
}

// SheetsOptions maps the application config to exporter options.
func SheetsOptions(cfg *config.Config) gsheet.Options {
	return gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}
}
