package config

import "time"

// Environment names accepted in app.env
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the full configuration of a process that embeds the fetch client.
type Config struct {
	App   AppConfig   `koanf:"app" json:"app" yaml:"app"`
	Log   LogConfig   `koanf:"log" json:"log" yaml:"log"`
	Fetch FetchConfig `koanf:"fetch" json:"fetch" yaml:"fetch"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Env  string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// FetchConfig configures the resilient fetch client and its HTTP transport.
type FetchConfig struct {
	// Retries is the maximum number of attempts per call (default 12)
	Retries int `koanf:"retries" json:"retries" yaml:"retries" validate:"gte=1"`
	// Pause is the fixed delay between attempts (default 2s)
	Pause time.Duration `koanf:"pause" json:"pause" yaml:"pause" validate:"gte=0"`
	// Timeout bounds a single attempt on the wire
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// LogPayloads enables debug logging of headers and body previews
	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
	// TraceIDHeader names the request ID header (default X-Request-ID)
	TraceIDHeader string `koanf:"traceidheader" json:"traceidheader" yaml:"traceidheader"`
	W3CTrace      bool   `koanf:"w3ctrace" json:"w3ctrace" yaml:"w3ctrace"`
	// Headers are sent with every request unless the request sets them
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
}
