package tester

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the harness configuration loadable from a YAML file. Zero
// fields leave the corresponding Tester defaults alone, so a config
// file only needs to name what it changes.
type Config struct {
	ServerHost       string   `yaml:"server_host"`
	TCPPort          int      `yaml:"tcp_port"`
	UDPPort          int      `yaml:"udp_port"`
	Protocols        []string `yaml:"protocols"`
	ClientCounts     []int    `yaml:"client_counts"`
	TestDuration     string   `yaml:"test_duration"`
	RampDuration     string   `yaml:"ramp_duration"`
	PauseBetweenRuns string   `yaml:"pause_between_runs"`
	StartJitter      string   `yaml:"start_jitter"`
	LogDir           string   `yaml:"log_dir"`
	DataDir          string   `yaml:"data_dir"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Apply copies the non-zero fields of c onto t. Durations use the
// [time.ParseDuration] syntax, e.g. "15s" or "500ms".
func (c *Config) Apply(t *Tester) error {
	if c.ServerHost != "" {
		t.ServerHost = c.ServerHost
	}
	if c.TCPPort > 0 {
		t.TCPPort = c.TCPPort
	}
	if c.UDPPort > 0 {
		t.UDPPort = c.UDPPort
	}
	if len(c.Protocols) > 0 {
		t.Protocols = append([]string{}, c.Protocols...)
	}
	if len(c.ClientCounts) > 0 {
		t.ClientCounts = append([]int{}, c.ClientCounts...)
	}
	if err := applyDuration(&t.TestDuration, c.TestDuration); err != nil {
		return err
	}
	if err := applyDuration(&t.RampDuration, c.RampDuration); err != nil {
		return err
	}
	if err := applyDuration(&t.PauseBetweenRuns, c.PauseBetweenRuns); err != nil {
		return err
	}
	if err := applyDuration(&t.StartJitter, c.StartJitter); err != nil {
		return err
	}
	if c.LogDir != "" {
		t.LogDir = c.LogDir
	}
	if c.DataDir != "" {
		t.DataDir = c.DataDir
	}
	return nil
}
