package soap

import (
	"context"
	"fmt"
)

// Remote method names.
const (
	MethodGetEmailAddress     = "twtGetEmailAddress"
	MethodInstallEmailAddress = "twtInstallEmailAddress"
	MethodUpdateEmailAddress  = "twtUpdateEmailAddress"
	MethodDeleteEmailAddress  = "twtDeleteEmailAddress"
	MethodGetDomain           = "twtGetDomain"
	MethodUpdateDomain        = "twtUpdateDomain"
	MethodRegisterDomain      = "twtRegisterDomain"
)

func (c *Client) GetMailbox(ctx context.Context, email string) (*Mailbox, error) {
	v, err := c.Call(ctx, MethodGetEmailAddress, Params{{Key: "email", Value: email}})
	if err != nil {
		return nil, err
	}
	m, err := mailboxFromValue(v)
	if err != nil {
		return nil, fmt.Errorf("get mailbox %s: %w", email, err)
	}
	return m, nil
}

// InstallMailbox creates a new address and returns the raw result.
// The address ends up active even when m.Active is false.
func (c *Client) InstallMailbox(ctx context.Context, m Mailbox) (any, error) {
	return c.Call(ctx, MethodInstallEmailAddress, m.params())
}

func (c *Client) UpdateMailbox(ctx context.Context, m Mailbox) (any, error) {
	return c.Call(ctx, MethodUpdateEmailAddress, m.params())
}

// DeleteMailbox removes an address. The service answers 1 on success.
func (c *Client) DeleteMailbox(ctx context.Context, email string) (int64, error) {
	v, err := c.Call(ctx, MethodDeleteEmailAddress, Params{{Key: "email", Value: email}})
	if err != nil {
		return 0, err
	}
	code, err := StatusCode(v)
	if err != nil {
		return 0, fmt.Errorf("delete mailbox %s: %w", email, err)
	}
	return code, nil
}

func (c *Client) GetDomain(ctx context.Context, name string) (*Domain, error) {
	v, err := c.Call(ctx, MethodGetDomain, Params{{Key: "name", Value: name}})
	if err != nil {
		return nil, err
	}
	d, err := domainFromValue(v)
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", name, err)
	}
	return d, nil
}

// UpdateDomain sends the changed fields of a domain, keyed by their API names
// (webIp, mailIp, refIdContactAdmin, ...).
func (c *Client) UpdateDomain(ctx context.Context, name string, changes Params) (any, error) {
	data := append(Params{{Key: "name", Value: name}}, changes...)
	return c.Call(ctx, MethodUpdateDomain, data)
}

func (c *Client) RegisterDomain(ctx context.Context, r Registration) (any, error) {
	return c.Call(ctx, MethodRegisterDomain, r.params())
}
