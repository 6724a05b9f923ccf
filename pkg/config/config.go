package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ripcordhq/ripcord/pkg/types"
)

// RegionEnvVar overrides the configured region when set. It is consumed by
// the cluster facade only.
const RegionEnvVar = "RIPCORD_REGION"

// Config is the root of the ripcord.yaml configuration file
type Config struct {
	LogLevel     string                     `yaml:"log_level"`
	ReportsDir   string                     `yaml:"reports_dir"`
	DataDir      string                     `yaml:"data_dir"`
	Environments map[string]EnvironmentSpec `yaml:"environments"`
	Budgets      Budgets                    `yaml:"budgets"`
}

// EnvironmentSpec describes one deployment environment
type EnvironmentSpec struct {
	Service          string   `yaml:"service"`
	Cluster          string   `yaml:"cluster"`
	Region           string   `yaml:"region"`
	Stack            string   `yaml:"stack"`      // CloudFormation stack holding declared infrastructure
	Repository       string   `yaml:"repository"` // image registry repository name
	DesiredCount     int      `yaml:"desired_count"`
	HealthPath       string   `yaml:"health_path"`     // path probed on the public endpoint
	DependencyAddr   string   `yaml:"dependency_addr"` // host:port of a declared downstream dependency
	Secrets          []string `yaml:"secrets"`         // declared secret handles
	ArtifactReadyCmd []string `yaml:"artifact_ready_cmd"`
	InfraApplyCmd    []string `yaml:"infra_apply_cmd"`
}

// Budgets holds the poll budgets for rollout waiting. Rollback gets a longer
// budget because rollback is expected to take longer on constrained
// platforms.
type Budgets struct {
	DeployMaxAttempts   int           `yaml:"deploy_max_attempts"`
	DeployInterval      time.Duration `yaml:"deploy_interval"`
	RollbackMaxAttempts int           `yaml:"rollback_max_attempts"`
	RollbackInterval    time.Duration `yaml:"rollback_interval"`
	InvocationTimeout   time.Duration `yaml:"invocation_timeout"`
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ReportsDir == "" {
		c.ReportsDir = "reports"
	}
	if c.DataDir == "" {
		c.DataDir = "ripcord-data"
	}
	if c.Budgets.DeployMaxAttempts == 0 {
		c.Budgets.DeployMaxAttempts = 30
	}
	if c.Budgets.DeployInterval == 0 {
		c.Budgets.DeployInterval = 2 * time.Second
	}
	if c.Budgets.RollbackMaxAttempts == 0 {
		c.Budgets.RollbackMaxAttempts = 60
	}
	if c.Budgets.RollbackInterval == 0 {
		c.Budgets.RollbackInterval = 2 * time.Second
	}
	if c.Budgets.InvocationTimeout == 0 {
		c.Budgets.InvocationTimeout = 30 * time.Minute
	}
	for name, env := range c.Environments {
		if env.DesiredCount == 0 {
			env.DesiredCount = 1
		}
		if env.HealthPath == "" {
			env.HealthPath = "/health"
		}
		c.Environments[name] = env
	}
}

func (c *Config) validate() error {
	if len(c.Environments) == 0 {
		return fmt.Errorf("config declares no environments")
	}
	for name, env := range c.Environments {
		if _, err := types.ParseEnvironment(name); err != nil {
			return fmt.Errorf("invalid environment name %q", name)
		}
		if env.Service == "" || env.Cluster == "" {
			return fmt.Errorf("environment %s: service and cluster are required", name)
		}
		if env.Stack == "" {
			return fmt.Errorf("environment %s: stack is required", name)
		}
	}
	return nil
}

// Target builds the DeploymentTarget for an environment. The region env var
// takes precedence over the configured region.
func (c *Config) Target(env types.Environment) (types.DeploymentTarget, EnvironmentSpec, error) {
	spec, ok := c.Environments[string(env)]
	if !ok {
		return types.DeploymentTarget{}, EnvironmentSpec{}, fmt.Errorf("environment %s not configured", env)
	}

	region := spec.Region
	if v := os.Getenv(RegionEnvVar); v != "" {
		region = v
	}

	return types.DeploymentTarget{
		Environment: env,
		Service:     spec.Service,
		Cluster:     spec.Cluster,
		Region:      region,
	}, spec, nil
}
