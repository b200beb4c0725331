// Dosa - restaurant order ETL and order database
//
// Usage:
//
//	dosa process orders.json [--customers-out customers.json] [--items-out items.json]
//	dosa show orders.json --format markdown
//	dosa init-db orders.json --db-dsn db.sqlite
//	dosa serve --port 8080
//	dosa export orders.json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"dosa-orders/api"
	"dosa-orders/db/clickhouse"
	"dosa-orders/db/ingestion"
	"dosa-orders/db/sqlstore"
	"dosa-orders/internal/aggregate"
	"dosa-orders/internal/orders"
	"dosa-orders/internal/pipeline"
	"dosa-orders/internal/report"
	apperrors "dosa-orders/pkg/errors"
	"dosa-orders/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and maps the outcome onto a process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	err := app.RunContext(ctx, args)
	if err == nil {
		return apperrors.ExitSuccess
	}

	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintln(stderr, usage.Error())
		return apperrors.ExitUsage
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return apperrors.ExitCode(err)
}

// usageError is a command line mistake; it maps to exit code 1.
type usageError struct {
	usage string
}

func (e usageError) Error() string { return "Usage: " + e.usage }

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "dosa",
		Usage:     "Restaurant order ETL and order database",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Writer:    stdout,
		ErrWriter: stderr,
		// errors are reported by run, never by os.Exit inside the library
		ExitErrHandler: func(*cli.Context, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"DOSA_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   string(platform.LogFormatConsole),
				Usage:   "Log format (console, json)",
				EnvVars: []string{"DOSA_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "db-driver",
				Value:   string(sqlstore.DriverSQLite),
				Usage:   "Order database driver (sqlite, postgres)",
				EnvVars: []string{"DOSA_DB_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Value:   "db.sqlite",
				Usage:   "Order database DSN (file path for sqlite)",
				EnvVars: []string{"DOSA_DB_DSN"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "dosa",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
		},

		Before: func(c *cli.Context) error {
			_, err := platform.InitLogger(c.App.ErrWriter, c.String("log-level"), platform.LogFormat(c.String("log-format")))
			if err != nil {
				return usageError{usage: "dosa [--log-level debug|info|warn|error] [--log-format console|json] <command>: " + err.Error()}
			}
			return nil
		},

		// bare invocations and unknown commands get a usage message and exit 1
		Action: func(c *cli.Context) error {
			return usageError{usage: "dosa <command> <orders.json> (commands: process, customers, items, show, init-db, serve, export)"}
		},

		Commands: []*cli.Command{
			processCommand(),
			customersCommand(),
			itemsCommand(),
			showCommand(),
			initDBCommand(),
			serveCommand(),
			exportCommand(),
		},
	}
}

// commandContext attaches the configured logger to the command's context.
func commandContext(c *cli.Context) context.Context {
	return log.Logger.WithContext(c.Context)
}

func inputArg(c *cli.Context, usage string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", usageError{usage: usage}
	}
	return c.Args().First(), nil
}

func aggregateOptions(c *cli.Context) (aggregate.Options, error) {
	count, err := aggregate.ParseCountPolicy(c.String("count-policy"))
	if err != nil {
		return aggregate.Options{}, usageError{usage: err.Error()}
	}
	price, err := aggregate.ParsePricePolicy(c.String("price-policy"))
	if err != nil {
		return aggregate.Options{}, usageError{usage: err.Error()}
	}
	return aggregate.Options{Count: count, Price: price}, nil
}

func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "count-policy",
			Value: string(aggregate.CountPerLine),
			Usage: "What one item order counts: line (every item line) or order (once per order)",
		},
		&cli.StringFlag{
			Name:  "price-policy",
			Value: string(aggregate.PriceLastSeen),
			Usage: "Which price wins for an item: last or first seen",
		},
	}
}

func strictFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "strict",
		Usage: "Fail on unreadable or malformed input instead of continuing with no orders",
	}
}

// =============================================================================
// ETL COMMANDS
// =============================================================================

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Write customers.json and items.json from an orders file",
		ArgsUsage: "<orders.json>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "customers-out",
				Value: "customers.json",
				Usage: "Customer output path",
			},
			&cli.StringFlag{
				Name:  "items-out",
				Value: "items.json",
				Usage: "Item output path",
			},
			strictFlag(),
		}, policyFlags()...),
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa process <orders.json>")
			if err != nil {
				return err
			}
			opts, err := aggregateOptions(c)
			if err != nil {
				return err
			}
			cfg := pipeline.DefaultConfig(input)
			cfg.CustomersPath = c.String("customers-out")
			cfg.ItemsPath = c.String("items-out")
			cfg.Strict = c.Bool("strict")
			cfg.Aggregate = opts
			_, err = pipeline.Run(commandContext(c), cfg)
			return err
		},
	}
}

func customersCommand() *cli.Command {
	return &cli.Command{
		Name:      "customers",
		Usage:     "Write only the phone -> name customer file",
		ArgsUsage: "<orders.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "customers.json",
				Usage:   "Output path",
			},
			strictFlag(),
		},
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa customers <orders.json>")
			if err != nil {
				return err
			}
			cfg := pipeline.DefaultConfig(input)
			cfg.CustomersPath = c.String("out")
			cfg.SkipItems = true
			cfg.Strict = c.Bool("strict")
			_, err = pipeline.Run(commandContext(c), cfg)
			return err
		},
	}
}

func itemsCommand() *cli.Command {
	return &cli.Command{
		Name:      "items",
		Usage:     "Write only the item price and order count file",
		ArgsUsage: "<orders.json>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "items.json",
				Usage:   "Output path",
			},
			strictFlag(),
		}, policyFlags()...),
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa items <orders.json>")
			if err != nil {
				return err
			}
			opts, err := aggregateOptions(c)
			if err != nil {
				return err
			}
			cfg := pipeline.DefaultConfig(input)
			cfg.ItemsPath = c.String("out")
			cfg.SkipCustomers = true
			cfg.Strict = c.Bool("strict")
			cfg.Aggregate = opts
			_, err = pipeline.Run(commandContext(c), cfg)
			return err
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print every order in an orders file",
		ArgsUsage: "<orders.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   string(report.FormatText),
				Usage:   "Output format (text, markdown)",
			},
			strictFlag(),
		},
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa show <orders.json>")
			if err != nil {
				return err
			}
			records, err := pipeline.LoadOrders(commandContext(c), input, c.Bool("strict"))
			if err != nil {
				return err
			}
			return report.Write(c.App.Writer, records, report.Format(c.String("format")))
		},
	}
}

// =============================================================================
// DATABASE COMMANDS
// =============================================================================

func storeConfig(c *cli.Context) (*sqlstore.Config, error) {
	driver, err := sqlstore.ParseDriver(c.String("db-driver"))
	if err != nil {
		return nil, usageError{usage: err.Error()}
	}
	cfg := sqlstore.DefaultConfig()
	cfg.Driver = driver
	cfg.DSN = c.String("db-dsn")
	if driver == sqlstore.DriverPostgres {
		cfg.MaxOpenConns = 10
	}
	return cfg, nil
}

func initDBCommand() *cli.Command {
	return &cli.Command{
		Name:      "init-db",
		Usage:     "Create the order database and load an orders file into it",
		ArgsUsage: "<orders.json>",
		Flags:     []cli.Flag{strictFlag()},
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa init-db <orders.json>")
			if err != nil {
				return err
			}
			cfg, err := storeConfig(c)
			if err != nil {
				return err
			}
			ctx := commandContext(c)

			records, err := pipeline.LoadOrders(ctx, input, c.Bool("strict"))
			if err != nil {
				return err
			}

			store, err := sqlstore.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Bootstrap(ctx, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Loaded %d customers, %d items, %d orders (%d skipped)\n",
				res.Customers, res.Items, res.Orders, res.Skipped)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the order database HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringSliceFlag{
				Name:    "cors-origins",
				Value:   cli.NewStringSlice("*"),
				Usage:   "Allowed CORS origins",
				EnvVars: []string{"DOSA_CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require this X-API-Key on every data endpoint",
				EnvVars: []string{"API_KEY"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := storeConfig(c)
			if err != nil {
				return err
			}
			ctx := commandContext(c)

			store, err := sqlstore.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			serverCfg := serverConfig(c.Int("port"), c.StringSlice("cors-origins"), c.String("api-key"))
			return api.NewServer(store, serverCfg).StartWithGracefulShutdown(ctx)
		},
	}
}

// serverConfig merges serve flags with the DOSA_* tuning variables.
func serverConfig(port int, origins []string, apiKey string) *api.Config {
	cfg := api.DefaultConfig()
	cfg.Port = port
	cfg.CORSOrigins = platform.SplitList(strings.Join(origins, ","))
	cfg.APIKey = apiKey
	cfg.MaxRequestSize = int64(platform.GetEnvInt("DOSA_MAX_REQUEST_SIZE", int(cfg.MaxRequestSize)))
	cfg.ShutdownTimeout = platform.GetEnvDuration("DOSA_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	return cfg
}

// =============================================================================
// EXPORT COMMAND
// =============================================================================

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Aggregate an orders file and push the result to ClickHouse",
		ArgsUsage: "<orders.json>",
		Flags:     policyFlags(),
		Action: func(c *cli.Context) error {
			input, err := inputArg(c, "dosa export <orders.json>")
			if err != nil {
				return err
			}
			opts, err := aggregateOptions(c)
			if err != nil {
				return err
			}
			ctx := commandContext(c)

			raw, err := os.ReadFile(input)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return apperrors.NewNotFoundError(input, err)
				}
				return apperrors.NewIOError(input, "failed to read orders", err)
			}
			records, err := orders.NewParser().ParseBytes(raw)
			if err != nil {
				return err
			}

			store, err := clickhouse.NewStore(&clickhouse.Config{
				Host:     c.String("clickhouse-host"),
				Port:     c.Int("clickhouse-port"),
				Database: c.String("clickhouse-database"),
				Username: c.String("clickhouse-user"),
				Password: c.String("clickhouse-password"),
				Debug:    platform.GetEnvBool("CLICKHOUSE_DEBUG", false),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("ClickHouse is not reachable: %w", err)
			}
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}

			res, err := ingestion.NewExporter(store).Export(ctx, &ingestion.ExportInput{
				Source:    input,
				Raw:       raw,
				Orders:    len(records),
				Options:   opts,
				Customers: aggregate.ExtractCustomers(records),
				Items:     aggregate.AggregateItems(records, opts),
			})
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(c.App.Writer, "Already exported as run %s\n", res.RunID)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Exported run %s: %d items, %d customers\n", res.RunID, res.ItemRows, res.CustomerRows)
			return nil
		},
	}
}
