// Command attackwatch-admin runs maintenance tasks against the attackwatch
// database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"attackwatch/internal/attacks"
	"attackwatch/internal/audit"
	"attackwatch/internal/auth"
	"attackwatch/internal/config"
	"attackwatch/internal/db"
	"attackwatch/internal/logging"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

const usage = `usage: attackwatch-admin [-config path] <command> [flags]

commands:
  resequence [-dry-run]       renumber eventIds 1..N by timestamp
  sequence                    show the next eventId
  create-admin -username u -email e -password p
                              create an administrator account
`

func main() {
	configPath := flag.String("config", "config/attackwatch.yaml", "path to the YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, red("load config:"), err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, red("init logger:"), err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, cmd string, args []string, out io.Writer) error {
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("admin commands need the postgres driver, configured %q", cfg.Storage.Driver)
	}
	conn, err := db.Open(ctx, cfg.Storage.DSN, 10*time.Second, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.RunMigrations(ctx, conn, cfg.Storage.SchemaPath); err != nil {
		return err
	}

	switch cmd {
	case "resequence":
		fs := flag.NewFlagSet("resequence", flag.ContinueOnError)
		dryRun := fs.Bool("dry-run", false, "report the renumbering without applying it")
		if err := fs.Parse(args); err != nil {
			return err
		}
		res, err := attacks.NewPostgresStore(conn).Resequence(ctx, *dryRun)
		if err != nil {
			return err
		}
		printResequence(out, res)
		return nil

	case "sequence":
		next, err := attacks.NewPostgresAllocator(conn, logger).Peek(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "next eventId: %s\n", bold(next))
		return nil

	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
		username := fs.String("username", "admin", "account username")
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		svc := auth.NewService(auth.NewStore(conn), audit.NewPostgresSink(conn), cfg.Auth.JWTSecret, logger)
		u, err := svc.CreateUser(ctx, nil, auth.CreateUserRequest{
			Username:    *username,
			Email:       *email,
			Password:    *password,
			Role:        auth.RoleAdmin,
			AccessLevel: auth.AccessSenior,
		}, auth.ClientInfo{IP: "cli", UserAgent: "attackwatch-admin"})
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Fprintln(out, yellow("user already exists:"), *email)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s (id %d)\n", green("created admin"), u.Username, u.ID)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printResequence(out io.Writer, res *attacks.ResequenceResult) {
	if len(res.Changes) == 0 {
		fmt.Fprintf(out, "%s %d events already numbered 1..%d\n", green("ok:"), res.Total, res.Total)
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Record", "Old eventId", "New eventId"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range res.Changes {
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			strconv.FormatInt(c.From, 10),
			strconv.FormatInt(c.To, 10),
		})
	}
	table.Render()

	verb := green("renumbered")
	if res.DryRun {
		verb = yellow("would renumber")
	}
	fmt.Fprintf(out, "%s %d of %d events\n", verb, len(res.Changes), res.Total)
}
