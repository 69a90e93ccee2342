package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// PanelTLS builds the *tls.Config for the panel host. A configured CA
// certificate takes precedence over InsecureSkipVerify. Returns nil, nil
// when the system roots should be used.
func (c *Config) PanelTLS() (*tls.Config, error) {
	if c.Panel.CACert != "" {
		caPEM, err := os.ReadFile(c.Panel.CACert)
		if err != nil {
			return nil, fmt.Errorf("read panel CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse panel CA cert")
		}
		return &tls.Config{RootCAs: pool}, nil
	}

	if c.Panel.InsecureSkipVerify {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	return nil, nil
}
