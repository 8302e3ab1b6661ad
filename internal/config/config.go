// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Paths() PathsConfig
	Generate() GenerateConfig
	Bounds() BoundsConfig
	Model() ModelConfig
	Study() StudyConfig
	Solver() SolverConfig
	Engine() EngineConfig

	// Setters used by command flags.
	SetPathsRoot(string)
	SetEngineCommand(string)
	SetGenerateScaleFactors([]float64)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	PathsCfg    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	GenerateCfg GenerateConfig `mapstructure:"generate" yaml:"generate"`
	BoundsCfg   BoundsConfig   `mapstructure:"bounds" yaml:"bounds"`
	ModelCfg    ModelConfig    `mapstructure:"model" yaml:"model"`
	StudyCfg    StudyConfig    `mapstructure:"study" yaml:"study"`
	SolverCfg   SolverConfig   `mapstructure:"solver" yaml:"solver"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Paths() PathsConfig       { return c.PathsCfg }
func (c *Config) Generate() GenerateConfig { return c.GenerateCfg }
func (c *Config) Bounds() BoundsConfig     { return c.BoundsCfg }
func (c *Config) Model() ModelConfig       { return c.ModelCfg }
func (c *Config) Study() StudyConfig       { return c.StudyCfg }
func (c *Config) Solver() SolverConfig     { return c.SolverCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetPathsRoot(root string)     { c.PathsCfg.Root = root }
func (c *Config) SetEngineCommand(cmd string) { c.EngineCfg.Command = cmd }
func (c *Config) SetGenerateScaleFactors(f []float64) {
	c.GenerateCfg.ScaleFactors = append([]float64(nil), f...)
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the run ledger connection details. An empty URL disables the ledger.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// PathsConfig describes the fixed sibling-directory layout the simulations read from
// and write to. Every directory is resolved relative to Root, never the working directory.
type PathsConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	ModelDir      string `mapstructure:"model_dir" yaml:"model_dir"`
	ResultsDir    string `mapstructure:"results_dir" yaml:"results_dir"`
	SupportingDir string `mapstructure:"supporting_dir" yaml:"supporting_dir"`
	GuessDir      string `mapstructure:"guess_dir" yaml:"guess_dir"`
	BaselineModel string `mapstructure:"baseline_model" yaml:"baseline_model"`
}

// Resolve joins a directory name onto the (home-expanded) root.
func (p PathsConfig) Resolve(dir string) (string, error) {
	root, err := homedir.Expand(p.Root)
	if err != nil {
		return "", fmt.Errorf("could not expand paths.root '%s': %w", p.Root, err)
	}
	if root == "" {
		root = "."
	}
	return filepath.Join(root, dir), nil
}

// GenerateConfig lists the muscle groups and scale factors used to build strength variants.
type GenerateConfig struct {
	ScaleFactors []float64  `mapstructure:"scale_factors" yaml:"scale_factors"`
	MuscleGroups [][]string `mapstructure:"muscle_groups" yaml:"muscle_groups"`
}

// BoundsConfig names the task bound tables inside the supporting data directory.
type BoundsConfig struct {
	ElevationFile string `mapstructure:"elevation_file" yaml:"elevation_file"`
	RotationFile  string `mapstructure:"rotation_file" yaml:"rotation_file"`
	AngleFile     string `mapstructure:"angle_file" yaml:"angle_file"`
}

// ActuatorConfig describes a coordinate actuator added to the model before solving.
type ActuatorConfig struct {
	Coordinate   string  `mapstructure:"coordinate" yaml:"coordinate"`
	OptimalForce float64 `mapstructure:"optimal_force" yaml:"optimal_force"`
	MaxControl   float64 `mapstructure:"max_control" yaml:"max_control"`
	MinControl   float64 `mapstructure:"min_control" yaml:"min_control"`
	Suffix       string  `mapstructure:"suffix" yaml:"suffix"`
}

// ModelConfig holds the edits applied to the baseline model before a simulation.
type ModelConfig struct {
	LockedCoordinates []string         `mapstructure:"locked_coordinates" yaml:"locked_coordinates"`
	HandBody          string           `mapstructure:"hand_body" yaml:"hand_body"`
	ReachAddedMass    float64          `mapstructure:"reach_added_mass" yaml:"reach_added_mass"`
	Actuators         []ActuatorConfig `mapstructure:"actuators" yaml:"actuators"`
}

// StudyConfig holds problem-level settings shared by every task.
type StudyConfig struct {
	InitialTime     float64 `mapstructure:"initial_time" yaml:"initial_time"`
	FinalTimeMin    float64 `mapstructure:"final_time_min" yaml:"final_time_min"`
	FinalTimeMax    float64 `mapstructure:"final_time_max" yaml:"final_time_max"`
	EffortWeight    float64 `mapstructure:"effort_weight" yaml:"effort_weight"`
	FinalTimeWeight float64 `mapstructure:"final_time_weight" yaml:"final_time_weight"`
}

// SolverConfig tunes the direct collocation solver.
type SolverConfig struct {
	ConvergenceTolerance  float64 `mapstructure:"convergence_tolerance" yaml:"convergence_tolerance"`
	ConstraintTolerance   float64 `mapstructure:"constraint_tolerance" yaml:"constraint_tolerance"`
	MaxIterations         int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	MultibodyDynamicsMode string  `mapstructure:"multibody_dynamics_mode" yaml:"multibody_dynamics_mode"`
	Transcription         string  `mapstructure:"transcription" yaml:"transcription"`
	OptimSolver           string  `mapstructure:"optim_solver" yaml:"optim_solver"`
}

// EngineConfig configures the external simulation engine bridge.
type EngineConfig struct {
	Command          string        `mapstructure:"command" yaml:"command"`
	Args             []string      `mapstructure:"args" yaml:"args"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// DefaultMuscleGroups are the groups altered together when generating strength variants.
var DefaultMuscleGroups = [][]string{
	{"TRP1", "TRP2"},
	{"TRP3", "TRP4"},
	{"SRA1", "SRA2", "SRA3"},
	{"DELT1"},
	{"DELT2"},
	{"DELT3"},
	{"SUPSP"},
	{"INFSP", "TMIN"},
	{"SUBSC"},
	{"TMAJ"},
	{"PECM1", "PECM2", "PECM3"},
	{"LAT"},
	{"CORB"},
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "strengthsim")
	v.SetDefault("logger.log_file", "strengthsim.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Paths --
	v.SetDefault("paths.root", ".")
	v.SetDefault("paths.model_dir", "ModelFiles")
	v.SetDefault("paths.results_dir", "SimulationResults")
	v.SetDefault("paths.supporting_dir", "SupportingData")
	v.SetDefault("paths.guess_dir", "GuessFiles")
	v.SetDefault("paths.baseline_model", "BaselineModel.osim")

	// -- Generate --
	v.SetDefault("generate.scale_factors", []float64{0.8, 0.9, 1.1, 1.2})
	v.SetDefault("generate.muscle_groups", DefaultMuscleGroups)

	// -- Bounds --
	v.SetDefault("bounds.elevation_file", "TaskBounds_Elv.csv")
	v.SetDefault("bounds.rotation_file", "TaskBounds_Rot.csv")
	v.SetDefault("bounds.angle_file", "TaskBounds_Ang.csv")

	// -- Model --
	v.SetDefault("model.locked_coordinates", []string{
		"thorax_tilt", "thorax_list", "thorax_rotation",
		"thorax_tx", "thorax_ty", "thorax_tz",
	})
	v.SetDefault("model.hand_body", "hand_r")
	v.SetDefault("model.reach_added_mass", 1.0)
	v.SetDefault("model.actuators", []ActuatorConfig{
		{Coordinate: "elv_angle", OptimalForce: 1, MaxControl: 1, MinControl: -1, Suffix: "_reserve"},
		{Coordinate: "shoulder_elv", OptimalForce: 1, MaxControl: 1, MinControl: -1, Suffix: "_reserve"},
		{Coordinate: "shoulder_rot", OptimalForce: 1, MaxControl: 1, MinControl: -1, Suffix: "_reserve"},
		{Coordinate: "elbow_flexion", OptimalForce: 1, MaxControl: 1, MinControl: -1, Suffix: "_reserve"},
		{Coordinate: "pro_sup", OptimalForce: 1, MaxControl: 1, MinControl: -1, Suffix: "_reserve"},
	})

	// -- Study --
	v.SetDefault("study.initial_time", 0.0)
	v.SetDefault("study.final_time_min", 0.1)
	v.SetDefault("study.final_time_max", 1.0)
	v.SetDefault("study.effort_weight", 1.0)
	v.SetDefault("study.final_time_weight", 1.0)

	// -- Solver --
	v.SetDefault("solver.convergence_tolerance", 1e-2)
	v.SetDefault("solver.constraint_tolerance", 1e-4)
	v.SetDefault("solver.max_iterations", 3000)
	v.SetDefault("solver.multibody_dynamics_mode", "explicit")
	v.SetDefault("solver.transcription", "hermite-simpson")
	v.SetDefault("solver.optim_solver", "ipopt")

	// -- Engine --
	v.SetDefault("engine.command", "osim-moco-bridge")
	v.SetDefault("engine.progress_interval", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("database.url", "STRENGTHSIM_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.PathsCfg.BaselineModel == "" {
		return fmt.Errorf("paths.baseline_model is a required configuration field")
	}
	if err := c.GenerateCfg.Validate(); err != nil {
		return fmt.Errorf("generate configuration invalid: %w", err)
	}
	if err := c.StudyCfg.Validate(); err != nil {
		return fmt.Errorf("study configuration invalid: %w", err)
	}
	if c.SolverCfg.MaxIterations <= 0 {
		return fmt.Errorf("solver.max_iterations must be a positive integer")
	}
	if c.EngineCfg.Command == "" {
		return fmt.Errorf("engine.command is a required configuration field")
	}
	return nil
}

// Validate checks the variant generation settings.
func (g *GenerateConfig) Validate() error {
	for _, f := range g.ScaleFactors {
		if f <= 0 {
			return fmt.Errorf("scale_factors must be positive, got %v", f)
		}
	}
	for i, group := range g.MuscleGroups {
		if len(group) == 0 {
			return fmt.Errorf("muscle_groups[%d] is empty", i)
		}
	}
	return nil
}

// Validate checks the StudyConfig settings.
func (s *StudyConfig) Validate() error {
	if s.FinalTimeMin <= s.InitialTime {
		return fmt.Errorf("final_time_min must be greater than initial_time")
	}
	if s.FinalTimeMax < s.FinalTimeMin {
		return fmt.Errorf("final_time_max must not be less than final_time_min")
	}
	if s.EffortWeight < 0 || s.FinalTimeWeight < 0 {
		return fmt.Errorf("goal weights must not be negative")
	}
	return nil
}
