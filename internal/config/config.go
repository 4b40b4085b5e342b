package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Writer types understood by the writer factory.
const (
	WriterText       = "text"
	WriterClickHouse = "clickhouse"
	WriterNATS       = "nats"
	WriterAlert      = "alert"
	WriterSnapshot   = "snapshot"
)

// InputConfig names the two input files of a run.
type InputConfig struct {
	LookupPath  string `yaml:"lookup_path"`
	FlowLogPath string `yaml:"flow_log_path"`
}

// EngineConfig controls how flow log lines are processed.
type EngineConfig struct {
	// NumWorkers <= 1 keeps the strictly sequential pipeline.
	NumWorkers        int `yaml:"num_workers"`
	SizeOfLineChannel int `yaml:"size_of_line_channel"`
}

// TextConfig holds the settings for the plain text report writer.
type TextConfig struct {
	Path string `yaml:"path"`
}

// SnapshotConfig holds the settings for the on-disk snapshot writer.
type SnapshotConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       TextConfig       `yaml:"text"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
}

// ReportConfig lists the writers a finished report is handed to.
type ReportConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// ProbeConfig holds the NATS settings shared by the publisher and subscriber.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the settings for the API server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SMTPConfig holds the settings for sending email notifications.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // Comma-separated list of recipients
}

// AlerterRule defines a single threshold checked against a finished report.
type AlerterRule struct {
	Name string `yaml:"name"`
	// Metric is one of tag_count, untagged_ratio, skipped_lines, total_lines.
	Metric    string  `yaml:"metric"`
	Tag       string  `yaml:"tag"` // Only used by tag_count
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the rules evaluated by the alert writer.
type AlerterConfig struct {
	Rules []AlerterRule `yaml:"rules"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the optional Prometheus textfile destination.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Engine  EngineConfig  `yaml:"engine"`
	Report  ReportConfig  `yaml:"report"`
	Probe   ProbeConfig   `yaml:"probe"`
	API     APIConfig     `yaml:"api"`
	Alerter AlerterConfig `yaml:"alerter"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			LookupPath:  "lookup.csv",
			FlowLogPath: "flow_logs.txt",
		},
		Engine: EngineConfig{
			NumWorkers:        1,
			SizeOfLineChannel: 1024,
		},
		Report: ReportConfig{
			Writers: []WriterDef{
				{Type: WriterText, Enabled: true, Text: TextConfig{Path: "output.txt"}},
			},
		},
		Probe: ProbeConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "flowtagger.reports",
		},
		API: APIConfig{ListenAddr: ":8080"},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Keys missing from the file keep their Default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every binary relies on.
func (c *Config) Validate() error {
	if c.Input.LookupPath == "" {
		return fmt.Errorf("input.lookup_path must not be empty")
	}
	if c.Input.FlowLogPath == "" {
		return fmt.Errorf("input.flow_log_path must not be empty")
	}
	if c.Engine.NumWorkers < 0 {
		return fmt.Errorf("engine.num_workers must not be negative, got %d", c.Engine.NumWorkers)
	}
	if c.Engine.SizeOfLineChannel < 0 {
		return fmt.Errorf("engine.size_of_line_channel must not be negative, got %d", c.Engine.SizeOfLineChannel)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format '%s'", c.Log.Format)
	}
	return nil
}

// TextWriter returns the first enabled text writer definition, if any.
func (c *Config) TextWriter() (*WriterDef, bool) {
	for i := range c.Report.Writers {
		if c.Report.Writers[i].Enabled && c.Report.Writers[i].Type == WriterText {
			return &c.Report.Writers[i], true
		}
	}
	return nil, false
}

// Snapshot returns the settings of the first enabled snapshot writer, if any.
func (c *Config) Snapshot() (*SnapshotConfig, bool) {
	for i := range c.Report.Writers {
		if c.Report.Writers[i].Enabled && c.Report.Writers[i].Type == WriterSnapshot {
			return &c.Report.Writers[i].Snapshot, true
		}
	}
	return nil, false
}

// ClickHouse returns the settings of the first enabled ClickHouse writer, if any.
func (c *Config) ClickHouse() (*ClickHouseConfig, bool) {
	for i := range c.Report.Writers {
		if c.Report.Writers[i].Enabled && c.Report.Writers[i].Type == WriterClickHouse {
			return &c.Report.Writers[i].ClickHouse, true
		}
	}
	return nil, false
}
