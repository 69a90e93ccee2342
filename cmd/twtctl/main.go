package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/edvin/twtctl/internal/command"
	"github.com/edvin/twtctl/internal/config"
	"github.com/edvin/twtctl/internal/logging"
	"github.com/edvin/twtctl/internal/metrics"
	"github.com/edvin/twtctl/internal/panel"
	"github.com/edvin/twtctl/internal/session"
	"github.com/edvin/twtctl/internal/soap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	action     command.Action
	configPath string
	logLevel   string
}

func newRootCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "twtctl [action] [arguments]",
		Short: "twtctl manages mail addresses and domains of a TwooIT reseller account",
		Long: `twtctl manages mail addresses and domains of a TwooIT reseller account.

Exactly one action is run per invocation; if several action flags are given,
the last one wins. Mailbox types are MB (mailbox), MBFWD (mailbox with
forward) or FWD (forward only); status is 0 (inactive) or 1 (active);
targets is a whitespace separated list of forwarding addresses.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), opts, args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	command.BindActions(root.Flags(), &opts.action)
	root.Flags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/twtctl/config.yaml)")
	root.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.Flags().SortFlags = false

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &command.UsageError{Msg: err.Error()}
	})
	return root
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	root := newRootCmd(opts, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	code := command.ExitCode(err)
	switch {
	case err == nil:
	case code == command.ExitUsage:
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fmt.Fprint(stderr, root.UsageString())
	case command.WriteFault(stdout, err):
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// execute checks the arguments, builds both clients and runs the action.
// Nothing is loaded or prompted for until the arguments are known to be
// usable.
func execute(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) error {
	if err := command.Check(opts.action, args); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.SOAP.Password == "" {
		if cfg.SOAP.Password, err = promptPassword(stderr, cfg.SOAP.Username); err != nil {
			return err
		}
	}

	logger := logging.NewLogger(cfg)
	rec := metrics.NewRecorder()
	if cfg.MetricsTextfile != "" {
		defer func() {
			if err := rec.WriteTextfile(cfg.MetricsTextfile); err != nil {
				logger.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("failed to write metrics textfile")
			}
		}()
	}

	tlsCfg, err := cfg.PanelTLS()
	if err != nil {
		return err
	}

	rpc := soap.NewClient(soap.Config{
		Endpoint:   cfg.SOAP.URI,
		Namespace:  cfg.SOAP.Namespace,
		SOAPAction: cfg.SOAP.SOAPAction,
		Auth:       soap.Credentials{Username: cfg.SOAP.Username, Password: cfg.SOAP.Password},
		Timeout:    cfg.SOAP.Timeout,
	}, logger, rec)

	store := session.NewStore(cfg.Panel.CookieFile)
	listings := panel.NewClient(panel.Config{
		BaseURL:   cfg.Panel.BaseURL,
		Username:  cfg.SOAP.Username,
		Password:  cfg.SOAP.Password,
		TLS:       tlsCfg,
		PageDelay: cfg.Panel.PageDelay,
		Timeout:   cfg.Panel.Timeout,
	}, store, logger, rec)

	logger.Debug().Str("cookie_file", store.Path()).Msg("session store")
	return command.NewDispatcher(rpc, listings, stdout, stderr, logger).Run(ctx, opts.action, args)
}

// promptPassword reads the account password from the terminal without echo.
// Without a terminal the password stays empty and the service rejects the
// credentials.
func promptPassword(w io.Writer, username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(w, "Password for %s: ", username)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pw)), nil
}
