package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/edvin/twtctl/internal/metrics"
)

// Credentials authenticate every call. They are sent as the first RPC
// argument ("auth") and reused for the web panel login.
type Credentials struct {
	Username string
	Password string
}

// Config describes the RPC endpoint.
type Config struct {
	Endpoint   string
	Namespace  string
	SOAPAction string
	Auth       Credentials
	Timeout    time.Duration
}

// Client issues single RPC calls against the panel API. It never retries;
// faults are returned to the caller as *Fault.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Recorder
}

func NewClient(cfg Config, logger zerolog.Logger, rec *metrics.Recorder) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "soap").Logger(),
		metrics:    rec,
	}
}

func (c *Client) authParams() Params {
	return Params{
		{Key: "username", Value: c.cfg.Auth.Username},
		{Key: "passwd", Value: c.cfg.Auth.Password},
	}
}

// Call invokes method with the credentials and data arguments and returns
// the decoded return value.
func (c *Client) Call(ctx context.Context, method string, data Params) (any, error) {
	doc := newEnvelope(c.cfg.Namespace, method,
		arg{name: "auth", value: c.authParams()},
		arg{name: "data", value: data},
	)
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", strconv.Quote(c.cfg.SOAPAction))

	c.metrics.RPCCall(method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	result, err := decodeResponse(body)
	var fault *Fault
	if errors.As(err, &fault) {
		c.metrics.RPCFault(method, fault.Code)
		c.logger.Debug().Str("method", method).Str("code", fault.Code).Msg("remote fault")
		return nil, fault
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}

	c.logger.Debug().
		Str("method", method).
		Dur("elapsed", time.Since(start)).
		Msg("call completed")
	return result, nil
}

// decodeResponse extracts the return value of an RPC response, or the Fault
// it carries.
func decodeResponse(body []byte) (any, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	env := doc.Root()
	if env == nil || env.Tag != "Envelope" {
		return nil, fmt.Errorf("missing SOAP envelope")
	}
	soapBody := env.SelectElement("Body")
	if soapBody == nil {
		return nil, fmt.Errorf("missing SOAP body")
	}

	if f := soapBody.SelectElement("Fault"); f != nil {
		fault := &Fault{}
		if code := f.SelectElement("faultcode"); code != nil {
			fault.Code = localName(strings.TrimSpace(code.Text()))
		}
		if msg := f.SelectElement("faultstring"); msg != nil {
			fault.Message = msg.Text()
		}
		return nil, fault
	}

	calls := soapBody.ChildElements()
	if len(calls) == 0 {
		return nil, fmt.Errorf("empty SOAP body")
	}
	ret := calls[0].ChildElements()
	if len(ret) == 0 {
		return nil, nil
	}
	return decodeValue(ret[0]), nil
}
