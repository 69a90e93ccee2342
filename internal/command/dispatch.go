package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/edvin/twtctl/internal/panel"
	"github.com/edvin/twtctl/internal/soap"
)

// Exit statuses of a twtctl run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// RPC is the mutating and record-reading side of the service.
type RPC interface {
	GetMailbox(ctx context.Context, email string) (*soap.Mailbox, error)
	InstallMailbox(ctx context.Context, m soap.Mailbox) (any, error)
	UpdateMailbox(ctx context.Context, m soap.Mailbox) (any, error)
	DeleteMailbox(ctx context.Context, email string) (int64, error)
	GetDomain(ctx context.Context, name string) (*soap.Domain, error)
	UpdateDomain(ctx context.Context, name string, changes soap.Params) (any, error)
	RegisterDomain(ctx context.Context, r soap.Registration) (any, error)
}

// Listings is the web panel side of the service.
type Listings interface {
	ListDomains(ctx context.Context) ([]panel.Row, error)
	ListMailboxesOfDomain(ctx context.Context, name string) ([]panel.Row, bool, error)
}

// Dispatcher runs one action against the service and prints its result.
type Dispatcher struct {
	rpc      RPC
	listings Listings
	out      io.Writer
	errOut   io.Writer
	logger   zerolog.Logger
}

func NewDispatcher(rpc RPC, listings Listings, out, errOut io.Writer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rpc:      rpc,
		listings: listings,
		out:      out,
		errOut:   errOut,
		logger:   logger,
	}
}

// Run validates args for action and executes it. Usage errors are returned
// before either client is touched.
func (d *Dispatcher) Run(ctx context.Context, action Action, args []string) error {
	if err := Check(action, args); err != nil {
		return err
	}
	d.logger.Debug().Str("action", action.String()).Strs("args", redact(action, args)).Msg("dispatching")

	switch action {
	case ActionListMailboxes:
		rows, found, err := d.listings.ListMailboxesOfDomain(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(d.errOut, "not found")
			return nil
		}
		return d.printRows(rows)

	case ActionListDomains:
		rows, err := d.listings.ListDomains(ctx)
		if err != nil {
			return err
		}
		return d.printRows(rows)

	case ActionGetMailbox:
		m, err := d.rpc.GetMailbox(ctx, args[0])
		if err != nil {
			return err
		}
		return d.printRecord(m)

	case ActionInstallMailbox:
		m, _ := parseMailbox(action, args)
		res, err := d.rpc.InstallMailbox(ctx, m)
		if err != nil {
			return err
		}
		if !m.Active {
			d.logger.Warn().Str("email", m.Email).Msg("the service activates newly installed addresses; use --update to deactivate")
		}
		return d.printRecord(res)

	case ActionUpdateMailbox:
		m, _ := parseMailbox(action, args)
		res, err := d.rpc.UpdateMailbox(ctx, m)
		if err != nil {
			return err
		}
		return d.printRecord(res)

	case ActionDeleteMailbox:
		code, err := d.rpc.DeleteMailbox(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(d.out, code)
		return err

	case ActionGetDomain:
		dom, err := d.rpc.GetDomain(ctx, args[0])
		if err != nil {
			return err
		}
		return d.printRecord(dom)

	case ActionRegisterDomain:
		r, _ := parseRegistration(args)
		res, err := d.rpc.RegisterDomain(ctx, r)
		if err != nil {
			return err
		}
		return d.printRecord(res)

	case ActionUpdateDomain:
		changes, _ := parseDomainChanges(args[1:])
		res, err := d.rpc.UpdateDomain(ctx, args[0], changes)
		if err != nil {
			return err
		}
		return d.printRecord(res)
	}
	return &UsageError{Action: action, Msg: "unsupported action"}
}

func (d *Dispatcher) printRows(rows []panel.Row) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(d.out, "%s\t%s\n", r.ID, r.Label); err != nil {
			return err
		}
	}
	return nil
}

// printRecord writes scalars on one line and anything structured as YAML.
func (d *Dispatcher) printRecord(v any) error {
	switch v := v.(type) {
	case nil:
		return nil
	case string, int64, bool, float64:
		_, err := fmt.Fprintln(d.out, v)
		return err
	}
	enc := yaml.NewEncoder(d.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}

// redact hides the password argument of mailbox writes from logs.
func redact(action Action, args []string) []string {
	if action != ActionInstallMailbox && action != ActionUpdateMailbox {
		return args
	}
	out := append([]string(nil), args...)
	out[2] = "***"
	return out
}

// ExitCode maps the result of Run to the process exit status.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// WriteFault prints an RPC fault as "<code>\t<message>". It reports false
// when err is not a fault.
func WriteFault(w io.Writer, err error) bool {
	var f *soap.Fault
	if !errors.As(err, &f) {
		return false
	}
	fmt.Fprintf(w, "%s\t%s\n", f.Code, f.Message)
	return true
}
