package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"storefront-client/internal/app"
	"storefront-client/internal/config"
	"storefront-client/internal/events"
	"storefront-client/internal/logging"
)

const appKey = "app"

func newCLI() *cli.App {
	return &cli.App{
		Name:  "cartctl",
		Usage: "drive the storefront cart from the terminal",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of tables"},
			&cli.StringFlag{Name: "profile", Usage: "session profile (overrides PROFILE)"},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "sign in",
				Subcommands: []*cli.Command{
					{Name: "guest", Usage: "create a guest account", Action: loginGuest},
					{
						Name:   "google",
						Usage:  "exchange a Google id token",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "id-token", Required: true}},
						Action: loginGoogle,
					},
				},
			},
			{Name: "logout", Usage: "forget the stored session", Action: logout},
			{
				Name:   "whoami",
				Usage:  "show the signed-in user",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "verify", Usage: "check the stored token with the storefront"}},
				Action: whoami,
			},
			{
				Name:  "cart",
				Usage: "inspect and change the cart",
				Subcommands: []*cli.Command{
					{Name: "show", Usage: "print the cart", Action: cartShow},
					{
						Name:      "add",
						Usage:     "add a product",
						ArgsUsage: "<product-id>",
						Flags:     []cli.Flag{&cli.IntFlag{Name: "qty", Value: 1}},
						Action:    cartAdd,
					},
					{Name: "inc", Usage: "add one unit to a line", ArgsUsage: "<item-id>", Action: itemCommand("inc")},
					{Name: "dec", Usage: "remove one unit from a line", ArgsUsage: "<item-id>", Action: itemCommand("dec")},
					{Name: "rm", Usage: "remove a line", ArgsUsage: "<item-id>", Action: itemCommand("rm")},
					{Name: "set", Usage: "set a line quantity", ArgsUsage: "<item-id> <qty>", Action: cartSet},
					{Name: "clear", Usage: "empty the cart", Action: cartClear},
					{Name: "count", Usage: "print the item count", Action: cartCount},
				},
			},
			{Name: "checkout", Usage: "print the order summary", Action: checkout},
		},
	}
}

// setup builds the app for one invocation. The in-memory session store cannot
// outlive the process, so the CLI falls back to the file store.
func setup(c *cli.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.SessionStore == config.StoreMemory {
		cfg.SessionStore = config.StoreFile
	}
	if p := c.String("profile"); p != "" {
		cfg.Profile = p
	}
	// Notices already go to stderr; keep logs to warnings unless asked.
	level := cfg.LogLevel
	if _, ok := os.LookupEnv("LOG_LEVEL"); !ok {
		level = "warn"
	}
	logger := logging.NewWithWriter(c.App.ErrWriter, level, cfg.LogFormat)

	ctx := c.Context
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.Bus.Subscribe(func(ev events.Event) {
		notice := ev.Payload.(events.Notice)
		fmt.Fprintf(c.App.ErrWriter, "[%s] %s\n", notice.Level, notice.Message)
	}, events.TopicNotice)
	if err := a.Session.Load(ctx); err != nil {
		a.Close()
		return err
	}
	c.App.Metadata = map[string]interface{}{appKey: a}
	return nil
}

func teardown(c *cli.Context) error {
	if a, ok := c.App.Metadata[appKey].(*app.App); ok {
		a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.App.Metadata[appKey].(*app.App)
}

func ctxFrom(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

func int64Arg(c *cli.Context, idx int, name string) (int64, error) {
	raw := c.Args().Get(idx)
	if raw == "" {
		return 0, errors.Errorf("missing <%s>", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("invalid <%s> %q", name, raw)
	}
	return v, nil
}
