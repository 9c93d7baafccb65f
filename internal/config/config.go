package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a collection run. Values come from a
// YAML file; credentials and deployment settings may be overridden from the
// environment. Components receive this struct (or a subsection) explicitly
// at construction; there is no process-wide mutable state.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Jira    Jira    `yaml:"jira"`
	Sonar   Sonar   `yaml:"sonar"`
	Scanner Scanner `yaml:"scanner"`
	Output  Output  `yaml:"output"`
}

// Jira configures the issue tracker connection and classification sets.
type Jira struct {
	BaseURL string `yaml:"base_url"`
	Project string `yaml:"project"`
	// APIVersion optionally pins a tracker API revision and skips probing.
	APIVersion string `yaml:"api_version"`
	PageSize   int    `yaml:"page_size"`

	// Issue type names treated as defects / as requirement-bearing, and
	// status names treated as closed.
	DefectTypes      []string `yaml:"defect_types"`
	RequirementTypes []string `yaml:"requirement_types"`
	ClosedStatuses   []string `yaml:"closed_statuses"`

	// EmitTrail adds the per-issue measurement trail (defect_count,
	// issue_count running totals) to the final tallies.
	EmitTrail bool `yaml:"emit_trail"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
	Token    string `yaml:"-"`
}

// Sonar configures the quality-analysis server connection.
type Sonar struct {
	BaseURL string `yaml:"base_url"`
	Project string `yaml:"project"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
	Token    string `yaml:"-"`
}

// Scanner configures requirement-marker detection.
type Scanner struct {
	MarkerPattern string `yaml:"marker_pattern"`
	// DedupScope is "per_issue" or "per_run".
	DedupScope string `yaml:"dedup_scope"`
}

// Output selects the report sinks. An empty struct means stdout only.
type Output struct {
	// Basename is the root of a dated JSON output filename.
	Basename string `yaml:"basename"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// Load reads the YAML config at path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"JIRA_BASE_URL": &c.Jira.BaseURL,
		"JIRA_USERNAME": &c.Jira.Username,
		"JIRA_PASSWORD": &c.Jira.Password,
		"JIRA_TOKEN":    &c.Jira.Token,

		"SONAR_BASE_URL": &c.Sonar.BaseURL,
		"SONAR_USERNAME": &c.Sonar.Username,
		"SONAR_PASSWORD": &c.Sonar.Password,
		"SONAR_TOKEN":    &c.Sonar.Token,

		"OUTPUT_S3_BUCKET": &c.Output.S3Bucket,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for env, ptr := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*ptr = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Jira.PageSize <= 0 {
		c.Jira.PageSize = 50
	}
	if len(c.Jira.DefectTypes) == 0 {
		c.Jira.DefectTypes = []string{"Bug"}
	}
	if len(c.Jira.RequirementTypes) == 0 {
		c.Jira.RequirementTypes = []string{"Story"}
	}
	if len(c.Jira.ClosedStatuses) == 0 {
		c.Jira.ClosedStatuses = []string{"Closed"}
	}
	if c.Scanner.DedupScope == "" {
		c.Scanner.DedupScope = "per_run"
	}
}

func (c *Config) validate() error {
	if c.Jira.BaseURL == "" && c.Sonar.BaseURL == "" {
		return fmt.Errorf("config: no sources configured, set jira.base_url or sonar.base_url")
	}
	if c.Jira.BaseURL != "" && c.Jira.Project == "" {
		return fmt.Errorf("config: jira.project is required when jira.base_url is set")
	}
	if c.Sonar.BaseURL != "" && c.Sonar.Project == "" {
		return fmt.Errorf("config: sonar.project is required when sonar.base_url is set")
	}
	return nil
}
