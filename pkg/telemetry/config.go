package telemetry

type Config struct {
	// The URL to the Jaeger instance (used when no OTLP host is set).
	JaegerURL string `yaml:"jaegerUrl"`
	// The OTLP collector to export traces to.
	OTLP OTLP `yaml:"otlp"`
	// The package name to use for the telemetry.
	Package string `yaml:"package"`
	// ID of the service instance.
	ID string `yaml:"id"`
}

type OTLP struct {
	// Host of the OTLP collector, without protocol or path.
	Host string `yaml:"host"`
	// Whether to use TLS when talking to the collector.
	Secure bool `yaml:"secure"`
}

// Enabled reports whether any trace exporter is configured.
func (c Config) Enabled() bool {
	return c.JaegerURL != "" || c.OTLP.Host != ""
}
