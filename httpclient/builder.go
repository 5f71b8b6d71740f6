package httpclient

import (
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/brickworks/resilientfetch/config"
	"github.com/brickworks/resilientfetch/httpclient/internal/tracking"
	"github.com/brickworks/resilientfetch/logger"
)

// Builder assembles a Client. Without WithTransport the client uses
// NewHTTPTransport with the transport settings collected by the builder.
type Builder struct {
	logger         logger.Logger
	transport      Transport
	config         *Config
	policy         RetryPolicy
	sleep          Sleeper
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// NewBuilder starts a builder with DefaultRetryPolicy. A nil logger discards logs.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		logger: log,
		config: &Config{
			Timeout:            defaultTimeout,
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
			DefaultHeaders:     map[string]string{},
		},
		policy: DefaultRetryPolicy(),
		sleep:  sleepContext,
	}
}

// WithTransport replaces the net/http transport
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryPolicy sets the policy returned by Client.DefaultPolicy
func (b *Builder) WithRetryPolicy(p RetryPolicy) *Builder {
	b.policy = p
	return b
}

// WithRetries sets attempts and pause of the default policy
func (b *Builder) WithRetries(maxAttempts int, delay time.Duration) *Builder {
	b.policy.MaxAttempts = maxAttempts
	b.policy.Delay = delay
	return b
}

func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

func (b *Builder) WithRequestInterceptor(i RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, i)
	return b
}

func (b *Builder) WithResponseInterceptor(i ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, i)
	return b
}

// WithLogPayloads enables payload logging; maxBytes <= 0 keeps the default cap
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

func (b *Builder) WithTraceIDHeader(header string) *Builder {
	b.config.TraceIDHeader = header
	return b
}

func (b *Builder) WithTraceIDGenerator(gen func() string) *Builder {
	b.config.NewTraceID = gen
	return b
}

func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithHTTPClient sets the net/http client used by the default transport
func (b *Builder) WithHTTPClient(hc *nethttp.Client) *Builder {
	b.config.HTTPClient = hc
	return b
}

// WithSleeper replaces the inter-attempt wait
func (b *Builder) WithSleeper(s Sleeper) *Builder {
	if s != nil {
		b.sleep = s
	}
	return b
}

func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithFetchConfig applies the fetch section of the process configuration
func (b *Builder) WithFetchConfig(cfg config.FetchConfig) *Builder {
	b.WithRetries(cfg.Retries, cfg.Pause)
	if cfg.Timeout > 0 {
		b.WithTimeout(cfg.Timeout)
	}
	b.WithLogPayloads(cfg.LogPayloads, cfg.MaxPayloadLogBytes)
	b.WithTraceIDHeader(cfg.TraceIDHeader)
	b.WithW3CTrace(cfg.W3CTrace)
	for k, v := range cfg.Headers {
		b.WithDefaultHeader(k, v)
	}
	return b
}

// Build creates the Client
func (b *Builder) Build() Client {
	t := b.transport
	if t == nil {
		t = NewHTTPTransport(b.logger, b.config.clone())
	}
	return &client{
		transport: t,
		logger:    b.logger,
		policy:    b.policy,
		sleep:     b.sleep,
		tracker:   tracking.New(b.meterProvider, b.tracerProvider),
		validate:  newValidator(),
	}
}

