package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/app"
	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/pkg/jwt"
	"github.com/Black-And-White-Club/arena-ranking/pkg/logging"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "arena-ranking",
		Usage: "competitive points ledger and season manager",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file", EnvVars: []string{"CONFIG_PATH"}},
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load before reading the configuration"},
		},
		Before: func(c *cli.Context) error {
			return config.LoadDotEnv(c.StringSlice("env-file")...)
		},
		Commands: []*cli.Command{
			serveCommand(),
			tokenCommand(),
			awardCommand(),
			removeCommand(),
			bulkCommand(),
			seasonCommand(),
			exportCommand(),
		},
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// withApp builds the application for a one-shot command and closes it afterwards.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Observability.Environment, cfg.Observability.LogLevel, "arena-ranking")
	ctx := c.Context
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = a.Close(closeCtx)
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints a successful result or turns a domain failure into a non-zero exit.
func emit[S any](c *cli.Context, res results.OperationResult[S, error], err error) error {
	if err != nil {
		return err
	}
	if res.IsFailure() {
		return cli.Exit(res.FailureErr().Error(), 2)
	}
	return printJSON(c.App.Writer, res.Unwrap())
}

func actorFlag() cli.Flag {
	return &cli.StringFlag{Name: "actor", Usage: "who is making the change", EnvVars: []string{"ARENA_ACTOR", "USER"}, Required: true}
}

func optionalID(c *cli.Context, name string) *int64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int64(name)
	return &v
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, message handlers and background jobs",
		Action: func(c *cli.Context) error {
			cfg, err := loadedConfig(c)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.Observability.Environment, cfg.Observability.LogLevel, "arena-ranking")
			a, err := app.NewApp(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			runErr := a.Start(c.Context)

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := a.Close(closeCtx); err != nil && runErr == nil {
				runErr = err
			}
			logger.Info("Application shut down")
			return runErr
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "actor name recorded on changes", Required: true},
			&cli.StringFlag{Name: "role", Value: string(jwt.RoleAdmin)},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (default from config)"},
		},
		Action: func(c *cli.Context) error {
			secret, issuer, ttl := tokenSettings(c)
			if secret == "" {
				return cli.Exit("JWT_SECRET is not configured", 2)
			}
			tokens := jwt.NewService(secret, issuer, ttl, nil)
			token, err := tokens.GenerateToken(c.String("subject"), jwt.Role(c.String("role")), c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

func awardCommand() *cli.Command {
	return &cli.Command{
		Name:  "award",
		Usage: "add or subtract points for a player",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "player", Required: true},
			&cli.IntFlag{Name: "points", Usage: "signed points; defaults to the position's points"},
			&cli.IntFlag{Name: "position"},
			&cli.Int64Flag{Name: "event"},
			&cli.StringFlag{Name: "reason"},
			actorFlag(),
		},
		Action: func(c *cli.Context) error {
			req := ledgerservice.AwardRequest{
				PlayerID: c.Int64("player"),
				EventID:  optionalID(c, "event"),
				Points:   c.Int("points"),
				Reason:   c.String("reason"),
				Actor:    c.String("actor"),
			}
			if c.IsSet("position") {
				pos := c.Int("position")
				req.Position = &pos
				if req.Points == 0 {
					req.Points = ledgerdomain.PointsForPosition(pos)
				}
				if req.Reason == "" {
					req.Reason = ledgerdomain.PositionReason(pos)
				}
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				res, err := a.LedgerModule.LedgerService.Award(ctx, req)
				return emit(c, res, err)
			})
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "delete a ledger entry and revert its points",
		ArgsUsage: "ENTRY_ID",
		Flags:     []cli.Flag{actorFlag()},
		Action: func(c *cli.Context) error {
			id, err := argID(c)
			if err != nil {
				return err
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				res, err := a.LedgerModule.LedgerService.Remove(ctx, id, c.String("actor"))
				return emit(c, res, err)
			})
		},
	}
}

func bulkCommand() *cli.Command {
	return &cli.Command{
		Name:      "bulk",
		Usage:     "award an event's results from a text or .xlsx file (- reads text from stdin)",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "event", Required: true},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the parsed rows without awarding"},
			actorFlag(),
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("a results file is required", 2)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				rows, err := readResults(ctx, c, a, path)
				if err != nil {
					return err
				}
				if c.Bool("dry-run") {
					return printJSON(c.App.Writer, rows)
				}
				res, err := a.LedgerModule.LedgerService.BulkAward(ctx, ledgerservice.BulkRequest{
					EventID: c.Int64("event"),
					Rows:    rows,
					Actor:   c.String("actor"),
				})
				return emit(c, res, err)
			})
		},
	}
}

func readResults(ctx context.Context, c *cli.Context, a *app.App, path string) ([]ledgerdomain.ResultRow, error) {
	if path == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, err
		}
		return ledgerdomain.ParseResultsText(string(data)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		res, err := a.LedgerModule.LedgerService.ParseResultsSpreadsheet(ctx, f)
		if err != nil {
			return nil, err
		}
		if res.IsFailure() {
			return nil, cli.Exit(res.FailureErr().Error(), 2)
		}
		return res.Unwrap(), nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return ledgerdomain.ParseResultsText(string(data)), nil
}

func seasonCommand() *cli.Command {
	return &cli.Command{
		Name:  "season",
		Usage: "manage seasons",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), " ")
					return withApp(c, func(ctx context.Context, a *app.App) error {
						res, err := a.SeasonModule.SeasonService.Create(ctx, name)
						return emit(c, res, err)
					})
				},
			},
			{
				Name:      "activate",
				ArgsUsage: "SEASON_ID",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return withApp(c, func(ctx context.Context, a *app.App) error {
						res, err := a.SeasonModule.SeasonService.Activate(ctx, id)
						return emit(c, res, err)
					})
				},
			},
			{
				Name:      "end",
				Usage:     "end a season now, or at --at through the job queue",
				ArgsUsage: "SEASON_ID",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "next", Usage: "season to activate afterwards"},
					&cli.TimestampFlag{Name: "at", Layout: time.RFC3339, Usage: "schedule instead of ending now"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					next := optionalID(c, "next")
					return withApp(c, func(ctx context.Context, a *app.App) error {
						if at := c.Timestamp("at"); at != nil {
							res, err := a.SeasonModule.SeasonService.ScheduleEnd(ctx, id, next, *at)
							return emit(c, res, err)
						}
						res, err := a.SeasonModule.SeasonService.EndAndRotate(ctx, id, next)
						return emit(c, res, err)
					})
				},
			},
			{
				Name:  "reset",
				Usage: "delete every ledger entry and zero all points",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "confirm", Usage: `must be "RESET"`, Required: true},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, a *app.App) error {
						res, err := a.SeasonModule.SeasonService.HardReset(ctx, c.String("confirm"))
						return emit(c, res, err)
					})
				},
			},
			{
				Name: "list",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, a *app.App) error {
						seasons, err := a.SeasonModule.SeasonService.List(ctx)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, seasons)
					})
				},
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the ranking as CSV or XLSX",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or xlsx"},
			&cli.StringFlag{Name: "out", Usage: "output directory", Value: "."},
		},
		Action: func(c *cli.Context) error {
			format := strings.ToLower(c.String("format"))
			if format != "csv" && format != "xlsx" {
				return cli.Exit("format must be csv or xlsx", 2)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				svc := a.LedgerModule.LedgerService
				path := filepath.Join(c.String("out"), svc.ExportFilename(format))
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				render := svc.ExportCSV
				if format == "xlsx" {
					render = svc.ExportXLSX
				}
				if err := render(ctx, f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, path)
				return err
			})
		},
	}
}

func argID(c *cli.Context) (int64, error) {
	var id int64
	if _, err := fmt.Sscan(c.Args().First(), &id); err != nil || id <= 0 {
		return 0, cli.Exit("a positive numeric id is required", 2)
	}
	return id, nil
}

// tokenSettings reads the JWT settings without requiring a database configuration.
func tokenSettings(c *cli.Context) (secret, issuer string, ttl time.Duration) {
	if cfg, err := loadedConfig(c); err == nil {
		return cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.DefaultTTL
	}
	issuer = os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "arena-ranking"
	}
	return os.Getenv("JWT_SECRET"), issuer, 24 * time.Hour
}
