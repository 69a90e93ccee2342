package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts remote calls made during one invocation. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	rpcCalls       *prometheus.CounterVec
	rpcFaults      *prometheus.CounterVec
	pageFetches    *prometheus.CounterVec
	logins         prometheus.Counter
	sessionRetries prometheus.Counter
}

// NewRecorder creates a Recorder backed by a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twtctl_rpc_calls_total",
			Help: "SOAP calls sent to the panel API",
		}, []string{"method"}),
		rpcFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twtctl_rpc_faults_total",
			Help: "SOAP faults returned by the panel API",
		}, []string{"method", "code"}),
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twtctl_page_fetches_total",
			Help: "Listing pages fetched from the panel web interface",
		}, []string{"controller"}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twtctl_logins_total",
			Help: "Login requests made to obtain a session cookie",
		}),
		sessionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twtctl_session_retries_total",
			Help: "Listing scans restarted after the session cookie expired",
		}),
	}
	r.registry.MustRegister(r.rpcCalls, r.rpcFaults, r.pageFetches, r.logins, r.sessionRetries)
	return r
}

func (r *Recorder) RPCCall(method string) {
	if r == nil {
		return
	}
	r.rpcCalls.WithLabelValues(method).Inc()
}

func (r *Recorder) RPCFault(method, code string) {
	if r == nil {
		return
	}
	r.rpcFaults.WithLabelValues(method, code).Inc()
}

func (r *Recorder) PageFetch(controller string) {
	if r == nil {
		return
	}
	r.pageFetches.WithLabelValues(controller).Inc()
}

func (r *Recorder) Login() {
	if r == nil {
		return
	}
	r.logins.Inc()
}

func (r *Recorder) SessionRetry() {
	if r == nil {
		return
	}
	r.sessionRetries.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps all counters in the node_exporter textfile collector
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
