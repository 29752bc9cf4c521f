package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

var global struct {
	envFile         string
	logLevel        string
	dbDriver        string
	dbURL           string
	defaultCurrency string
	reviewThreshold float64
}

var (
	cfg    *common.Config
	logger *slog.Logger
)

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&global.envFile, "env-file", ".env", "dotenv file preloaded before reading the environment")
	fs.StringVar(&global.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&global.dbDriver, "db-driver", "", "postgres or sqlite (overrides DB_DRIVER)")
	fs.StringVar(&global.dbURL, "db-url", "", "database URL (overrides DB_URL)")
	fs.StringVar(&global.defaultCurrency, "default-currency", "", "currency stored when none is known (overrides DEFAULT_CURRENCY)")
	fs.Float64Var(&global.reviewThreshold, "review-threshold", 0, "confidence below which results need review (overrides REVIEW_THRESHOLD)")
}

// setup loads configuration, applies flag overrides and installs a JSON
// logger on stderr. Stdout is kept for command output.
func setup(cmd *cobra.Command, _ []string) error {
	if err := common.LoadEnvFile(global.envFile); err != nil {
		return err
	}
	cfg = common.LoadConfig()
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.Database.Driver = global.dbDriver
	}
	if flags.Changed("db-url") {
		cfg.Database.URL = global.dbURL
	}
	if flags.Changed("default-currency") {
		cfg.Parser.DefaultCurrency = strings.ToUpper(global.defaultCurrency)
	}
	if flags.Changed("review-threshold") {
		cfg.Parser.ReviewThreshold = global.reviewThreshold
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(global.logLevel)); err != nil {
		return common.InvalidArgumentErrorf("--log-level %q: %v", global.logLevel, err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func newParser() *parser.Parser {
	return parser.New(parser.WithLogger(logger), parser.WithReviewThreshold(cfg.Parser.ReviewThreshold))
}

func newExtractor() *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		HeicConverter:    cfg.OCR.HeicConverter,
		TessdataDir:      cfg.OCR.TessdataDir,
		Timeout:          cfg.OCR.Timeout,
		CommandTimeout:   cfg.OCR.CommandTimeout,
		ArtifactCacheDir: os.TempDir(),
	}, logger)
}

func openDB(ctx context.Context) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	// A local SQLite file is created on first use.
	if db.Dialect() == dialect.SQLite {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

type app struct {
	db       *repository.DB
	files    repository.ReceiptFileRepository
	receipts repository.ReceiptRepository
	proc     *core.Processor
}

func openApp(ctx context.Context) (*app, error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{
		db:       db,
		files:    repository.NewReceiptFileRepository(db, logger),
		receipts: repository.NewReceiptRepository(db, cfg.Parser.DefaultCurrency, logger),
	}
	a.proc = core.NewProcessor(logger, newExtractor(), a.files, a.receipts, core.WithParser(newParser()))
	return a, nil
}

func (a *app) Close() { a.db.Close() }

// changedString returns &v when the flag was set on the command line.
func changedString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// hintFlags are the optional parser.Context fields.
type hintFlags struct {
	senderDomain, senderName, subject string
	locale, currency, billingCountry  string
}

func (h *hintFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&h.senderDomain, "sender-domain", "", "email sender domain, e.g. uber.com")
	fs.StringVar(&h.senderName, "sender-name", "", "email sender display name")
	fs.StringVar(&h.subject, "subject", "", "email subject line")
	fs.StringVar(&h.locale, "locale", "", "BCP 47 locale for ambiguous dates, e.g. en-GB")
	fs.StringVar(&h.currency, "user-currency", "", "ISO 4217 currency the user usually pays in")
	fs.StringVar(&h.billingCountry, "billing-country", "", "billing country name or ISO code")
}

func (h *hintFlags) context() *parser.Context {
	c := parser.Context{
		SenderDomain:   h.senderDomain,
		SenderName:     h.senderName,
		Subject:        h.subject,
		UserLocale:     h.locale,
		UserCurrency:   strings.ToUpper(h.currency),
		BillingCountry: h.billingCountry,
	}
	if c == (parser.Context{}) {
		return nil
	}
	return &c
}
