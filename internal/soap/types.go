package soap

import (
	"fmt"
	"strconv"
	"strings"
)

// MailboxType is the wire code of an address type.
type MailboxType string

const (
	TypeMailbox        MailboxType = "MB"
	TypeMailboxForward MailboxType = "MBFWD"
	TypeForward        MailboxType = "FWD"
)

var mailboxTypeNames = map[string]MailboxType{
	"mb":                   TypeMailbox,
	"mailbox":              TypeMailbox,
	"mbfwd":                TypeMailboxForward,
	"mailbox-with-forward": TypeMailboxForward,
	"mailbox+forward":      TypeMailboxForward,
	"fwd":                  TypeForward,
	"forward":              TypeForward,
	"forward-only":         TypeForward,
}

// ParseMailboxType accepts a wire code (MB, MBFWD, FWD) or its long name.
func ParseMailboxType(s string) (MailboxType, error) {
	if t, ok := mailboxTypeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown mailbox type %q (want mailbox, mailbox-with-forward or forward-only)", s)
}

// Mailbox is an e-mail address record as held by the service.
//
// The service activates every newly installed address regardless of Active.
// The client passes Active through unchanged and does not correct this.
type Mailbox struct {
	Email    string      `yaml:"email"`
	Type     MailboxType `yaml:"type"`
	Password string      `yaml:"password,omitempty"`
	Targets  []string    `yaml:"targets,omitempty"`
	Active   bool        `yaml:"active"`
}

func (m Mailbox) params() Params {
	active := 0
	if m.Active {
		active = 1
	}
	return Params{
		{Key: "email", Value: m.Email},
		{Key: "type", Value: string(m.Type)},
		{Key: "passwd", Value: m.Password},
		{Key: "targets", Value: strings.Join(m.Targets, " ")},
		{Key: "active", Value: active},
	}
}

func mailboxFromValue(v any) (*Mailbox, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected mailbox result %T", v)
	}
	return &Mailbox{
		Email:    asString(m["email"]),
		Type:     MailboxType(asString(m["type"])),
		Password: asString(m["passwd"]),
		Targets:  asList(m["targets"]),
		Active:   asBool(m["active"]),
	}, nil
}

// RegType selects how a domain is brought under management.
type RegType string

const (
	RegTypeRegister RegType = "register"
	RegTypeTransfer RegType = "transfer"
)

// Domain is a domain record as held by the service. Contacts is keyed by
// the refIdContact suffix (Owner, Admin, Tech, Zone).
type Domain struct {
	Name              string            `yaml:"name"`
	RegistrarStatus   string            `yaml:"registrar_status,omitempty"`
	RegistrarAuthCode string            `yaml:"registrar_auth_code,omitempty"`
	RegType           RegType           `yaml:"reg_type,omitempty"`
	Contacts          map[string]string `yaml:"contacts,omitempty"`
	WebIP             string            `yaml:"web_ip,omitempty"`
	MailIP            string            `yaml:"mail_ip,omitempty"`
}

// RegistrarStatusOK is the registrar status of a healthy domain.
const RegistrarStatusOK = "1000"

func domainFromValue(v any) (*Domain, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected domain result %T", v)
	}
	d := &Domain{
		Name:            asString(m["name"]),
		RegistrarStatus: asString(m["registrarStatus"]),
		RegType:         RegType(asString(m["regType"])),
		WebIP:           asString(m["webIp"]),
		MailIP:          asString(m["mailIp"]),
	}
	// The API documentation spells this key both ways.
	d.RegistrarAuthCode = asString(m["registrarAuthCode"])
	if d.RegistrarAuthCode == "" {
		d.RegistrarAuthCode = asString(m["registratAuthCode"])
	}
	for k, v := range m {
		suffix, ok := strings.CutPrefix(k, "refIdContact")
		if !ok || suffix == "" {
			continue
		}
		if d.Contacts == nil {
			d.Contacts = map[string]string{}
		}
		d.Contacts[suffix] = asString(v)
	}
	return d, nil
}

// Registration is the data of a twtRegisterDomain call.
type Registration struct {
	Name              string
	OwnerContactID    string
	AdminContactID    string
	WebIP             string
	MailIP            string
	RegType           RegType
	RegistrarAuthCode string
}

func (r Registration) params() Params {
	p := Params{
		{Key: "name", Value: r.Name},
		{Key: "refIdContactOwner", Value: r.OwnerContactID},
		{Key: "refIdContactAdmin", Value: r.AdminContactID},
		{Key: "webIp", Value: r.WebIP},
		{Key: "mailIp", Value: r.MailIP},
	}
	if r.RegType != "" && r.RegType != RegTypeRegister {
		p = append(p, Param{Key: "regType", Value: string(r.RegType)})
	}
	if r.RegistrarAuthCode != "" {
		p = append(p, Param{Key: "registrarAuthCode", Value: r.RegistrarAuthCode})
	}
	return p
}

// StatusCode interprets a scalar result as the numeric status the service
// uses for delete and update calls (1 on success).
func StatusCode(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("status code %q: %w", val, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unexpected status result %T", v)
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case string:
		s := strings.TrimSpace(val)
		return s == "1" || strings.EqualFold(s, "true")
	}
	return false
}

func asList(v any) []string {
	switch val := v.(type) {
	case string:
		return strings.Fields(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
