package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Action is the single operation selected on the command line.
type Action int

const (
	ActionNone Action = iota
	ActionListMailboxes
	ActionGetMailbox
	ActionInstallMailbox
	ActionUpdateMailbox
	ActionDeleteMailbox
	ActionListDomains
	ActionGetDomain
	ActionRegisterDomain
	ActionUpdateDomain
)

type actionSpec struct {
	action   Action
	long     string
	short    string
	args     []string
	variadic bool
	usage    string
}

// actionSpecs lists the actions in help order. args names the required
// positional arguments; a variadic action accepts more of its last one.
var actionSpecs = []actionSpec{
	{ActionListMailboxes, "mails", "e", []string{"domain"}, false, "List existing mails of domain"},
	{ActionGetMailbox, "list", "l", []string{"mail address"}, false, "List information about existing mail address"},
	{ActionInstallMailbox, "install", "i", []string{"mail address", "type", "password", "status", "targets"}, false, "Create new mail address"},
	{ActionUpdateMailbox, "update", "u", []string{"mail address", "type", "password", "status", "targets"}, false, "Update mail address"},
	{ActionDeleteMailbox, "delete", "d", []string{"mail address"}, false, "Delete mail address"},
	{ActionListDomains, "list-domains", "", nil, false, "List all registered domains with its ID"},
	{ActionGetDomain, "list-domain", "", []string{"domain"}, false, "List information about existing domain"},
	{ActionRegisterDomain, "register-domain", "", []string{"domain", "owner contact", "admin contact", "web ip", "mail ip"}, false, "Register new domain"},
	{ActionUpdateDomain, "update-domain", "", []string{"domain", "key=value"}, true, "Update fields of existing domain"},
}

func specFor(a Action) (actionSpec, bool) {
	for _, s := range actionSpecs {
		if s.action == a {
			return s, true
		}
	}
	return actionSpec{}, false
}

func (a Action) String() string {
	if s, ok := specFor(a); ok {
		return s.long
	}
	return "none"
}

// Synopsis renders the positional arguments of the action, e.g.
// "<mail address> <type>".
func (a Action) Synopsis() string {
	s, _ := specFor(a)
	parts := make([]string, len(s.args))
	for i, arg := range s.args {
		parts[i] = "<" + arg + ">"
	}
	if s.variadic && len(parts) > 0 {
		parts[len(parts)-1] += "..."
	}
	return strings.Join(parts, " ")
}

// actionFlag is a boolean flag that selects its action when set. All action
// flags share one target, so the last one given wins.
type actionFlag struct {
	target *Action
	action Action
}

func (f *actionFlag) String() string {
	if f.target == nil {
		return "false"
	}
	return strconv.FormatBool(*f.target == f.action)
}

func (f *actionFlag) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	switch {
	case on:
		*f.target = f.action
	case *f.target == f.action:
		*f.target = ActionNone
	}
	return nil
}

func (f *actionFlag) Type() string { return "bool" }

// BindActions registers one flag per action on fs, all writing target.
func BindActions(fs *pflag.FlagSet, target *Action) {
	for _, s := range actionSpecs {
		usage := s.usage
		if syn := s.action.Synopsis(); syn != "" {
			usage = fmt.Sprintf("%s: %s", syn, s.usage)
		}
		fl := fs.VarPF(&actionFlag{target: target, action: s.action}, s.long, s.short, usage)
		fl.NoOptDefVal = "true"
	}
}
