package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/twtctl/internal/soap"
)

// UsageError reports missing or malformed command-line arguments. It is
// raised before any request leaves the process.
type UsageError struct {
	Action Action
	Msg    string
}

func (e *UsageError) Error() string {
	if e.Action == ActionNone {
		return e.Msg
	}
	return fmt.Sprintf("--%s: %s", e.Action, e.Msg)
}

func usagef(a Action, format string, args ...any) *UsageError {
	return &UsageError{Action: a, Msg: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("mailbox_type", func(fl validator.FieldLevel) bool {
		_, err := soap.ParseMailboxType(fl.Field().String())
		return err == nil
	})
	return v
}

type mailboxArgs struct {
	Email    string `validate:"required,email"`
	Type     string `validate:"required,mailbox_type"`
	Password string
	Status   string `validate:"required,oneof=0 1"`
	Targets  string
}

type registrationArgs struct {
	Name   string `validate:"required,fqdn"`
	Owner  string `validate:"required"`
	Admin  string `validate:"required"`
	WebIP  string `validate:"required,ip"`
	MailIP string `validate:"required,ip"`
}

// Check verifies that args satisfy the action's arity and basic shape. It
// never performs I/O.
func Check(action Action, args []string) error {
	s, ok := specFor(action)
	if !ok {
		return &UsageError{Msg: "no action selected"}
	}
	if len(args) < len(s.args) {
		return usagef(action, "missing argument <%s>", s.args[len(args)])
	}
	if !s.variadic && len(args) > len(s.args) {
		return usagef(action, "unexpected argument %q", args[len(s.args)])
	}

	switch action {
	case ActionInstallMailbox, ActionUpdateMailbox:
		_, err := parseMailbox(action, args)
		return err
	case ActionRegisterDomain:
		_, err := parseRegistration(args)
		return err
	case ActionUpdateDomain:
		_, err := parseDomainChanges(args[1:])
		return err
	}
	return nil
}

func parseMailbox(action Action, args []string) (soap.Mailbox, error) {
	a := mailboxArgs{Email: args[0], Type: args[1], Password: args[2], Status: args[3], Targets: args[4]}
	if err := validate.Struct(a); err != nil {
		return soap.Mailbox{}, validationUsage(action, err)
	}
	typ, _ := soap.ParseMailboxType(a.Type)
	return soap.Mailbox{
		Email:    a.Email,
		Type:     typ,
		Password: a.Password,
		Targets:  strings.Fields(a.Targets),
		Active:   a.Status == "1",
	}, nil
}

func parseRegistration(args []string) (soap.Registration, error) {
	a := registrationArgs{Name: args[0], Owner: args[1], Admin: args[2], WebIP: args[3], MailIP: args[4]}
	if err := validate.Struct(a); err != nil {
		return soap.Registration{}, validationUsage(ActionRegisterDomain, err)
	}
	return soap.Registration{
		Name:           a.Name,
		OwnerContactID: a.Owner,
		AdminContactID: a.Admin,
		WebIP:          a.WebIP,
		MailIP:         a.MailIP,
		RegType:        soap.RegTypeRegister,
	}, nil
}

// parseDomainChanges turns key=value arguments into RPC data, keeping
// their order.
func parseDomainChanges(args []string) (soap.Params, error) {
	changes := make(soap.Params, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, usagef(ActionUpdateDomain, "expected key=value, got %q", arg)
		}
		if key == "name" {
			return nil, usagef(ActionUpdateDomain, "the domain name cannot be changed")
		}
		changes = append(changes, soap.Param{Key: key, Value: value})
	}
	return changes, nil
}

func validationUsage(action Action, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return usagef(action, "%v", err)
	}
	var msgs []string
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s %q (%s)", strings.ToLower(fe.Field()), fe.Value(), fe.Tag()))
	}
	return usagef(action, "%s", strings.Join(msgs, ", "))
}
