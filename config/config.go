package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/LdDl/sot-go/sot"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parameter files looked up in the parameter directory. Every file is optional
const (
	HyperparamsFile = "hyperparams.json"
	DesignFile      = "design.json"
	EnvironmentFile = "environment.json"
	EvaluationFile  = "evaluation.json"
	RunFile         = "run.json"
)

// Design is scorer design plus crop options of the reference scorer
type Design struct {
	sot.Design
	// Fill crop area outside of the frame with the mean frame color. Black otherwise
	PadWithImageMean bool `json:"pad_with_image_mean"`
}

// Environment describes where datasets live
type Environment struct {
	RootDataset string `json:"root_dataset" validate:"required"`
}

// Evaluation selects videos and evaluation options
type Evaluation struct {
	// Number of sub-sequences tracked per video
	NSubseq int `json:"n_subseq" validate:"gt=0"`
	// Center distance threshold for precision, pixels
	DistThreshold float64 `json:"dist_threshold" validate:"gt=0"`
	// First frame of the single tracked sequence when NSubseq is 1
	StartFrame int `json:"start_frame" validate:"gte=0"`
	// Dataset directory under RootDataset
	Dataset string `json:"dataset" validate:"required"`
	// Video name or "all"
	Video string `json:"video" validate:"required"`
}

// Run holds runtime switches
type Run struct {
	Visualization bool   `json:"visualization"`
	Debug         bool   `json:"debug"`
	LogLevel      string `json:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFile       string `json:"log_file"`
}

// Config is the whole set of parameters of a tracking session
type Config struct {
	Hyperparams sot.Hyperparams
	Design      Design
	Environment Environment
	Evaluation  Evaluation
	Run         Run
}

// AllVideos is the Evaluation.Video value selecting every video of the dataset
const AllVideos = "all"

// Default returns parameters used by the reference setup
func Default() *Config {
	return &Config{
		Hyperparams: sot.Hyperparams{
			ScaleStep:       1.0375,
			ScaleNum:        3,
			ScaleLR:         0.59,
			ScalePenalty:    0.9745,
			WindowInfluence: 0.176,
			ResponseUp:      8,
			ZLR:             0.01,
			ScaleMin:        0.2,
			ScaleMax:        5,
		},
		Design: Design{
			Design: sot.Design{
				Context:      0.5,
				ExemplarSize: 127,
				SearchSize:   255,
				TotalStride:  4,
				ScoreSize:    33,
			},
			PadWithImageMean: true,
		},
		Environment: Environment{
			RootDataset: "data",
		},
		Evaluation: Evaluation{
			NSubseq:       3,
			DistThreshold: 20,
			StartFrame:    0,
			Dataset:       "validation",
			Video:         AllVideos,
		},
		Run: Run{
			LogLevel: "info",
		},
	}
}

// Load reads parameter files from dir over defaults, then applies environment overrides and validates result.
// Empty dir skips parameter files.
func Load(dir string) (*Config, error) {
	cfg := Default()
	if dir != "" {
		sections := []struct {
			file   string
			target any
		}{
			{HyperparamsFile, &cfg.Hyperparams},
			{DesignFile, &cfg.Design},
			{EnvironmentFile, &cfg.Environment},
			{EvaluationFile, &cfg.Evaluation},
			{RunFile, &cfg.Run},
		}
		for _, section := range sections {
			if err := readSection(filepath.Join(dir, section.file), section.target); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSection(path string, target any) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "Can't read parameters file '%s'", path)
	}
	if err = json.Unmarshal(content, target); err != nil {
		return errors.Wrapf(err, "Can't decode parameters file '%s'", path)
	}
	return nil
}

// LoadDotEnv loads given dotenv files into the process environment. Missing files are skipped.
// Variables already present in the environment are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "Can't load dotenv files")
	}
	return nil
}

// ApplyEnv overrides parameters with SOT_* environment variables
func (cfg *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SOT_ROOT_DATASET": &cfg.Environment.RootDataset,
		"SOT_DATASET":      &cfg.Evaluation.Dataset,
		"SOT_VIDEO":        &cfg.Evaluation.Video,
		"SOT_LOG_LEVEL":    &cfg.Run.LogLevel,
		"SOT_LOG_FILE":     &cfg.Run.LogFile,
	}
	for key, target := range strs {
		if value, ok := os.LookupEnv(key); ok {
			*target = value
		}
	}
	ints := map[string]*int{
		"SOT_START_FRAME": &cfg.Evaluation.StartFrame,
		"SOT_N_SUBSEQ":    &cfg.Evaluation.NSubseq,
	}
	for key, target := range ints {
		if value, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return errors.Wrapf(err, "Can't parse %s", key)
			}
			*target = parsed
		}
	}
	floats := map[string]*float64{
		"SOT_DIST_THRESHOLD": &cfg.Evaluation.DistThreshold,
	}
	for key, target := range floats {
		if value, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return errors.Wrapf(err, "Can't parse %s", key)
			}
			*target = parsed
		}
	}
	bools := map[string]*bool{
		"SOT_DEBUG": &cfg.Run.Debug,
	}
	for key, target := range bools {
		if value, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return errors.Wrapf(err, "Can't parse %s", key)
			}
			*target = parsed
		}
	}
	return nil
}

// Validate checks every section
func (cfg *Config) Validate() error {
	if err := cfg.Hyperparams.Validate(); err != nil {
		return err
	}
	if err := cfg.Design.Design.Validate(); err != nil {
		return err
	}
	validate := validator.New()
	for name, section := range map[string]any{
		"environment": cfg.Environment,
		"evaluation":  cfg.Evaluation,
		"run":         cfg.Run,
	} {
		if err := validate.Struct(section); err != nil {
			return errors.Wrapf(sot.ErrConfiguration, "invalid %s parameters: %s", name, err.Error())
		}
	}
	return nil
}

// Write dumps effective parameters as JSON
func (cfg *Config) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Hyperparams sot.Hyperparams `json:"hyperparams"`
		Design      Design          `json:"design"`
		Environment Environment     `json:"environment"`
		Evaluation  Evaluation      `json:"evaluation"`
		Run         Run             `json:"run"`
	}{cfg.Hyperparams, cfg.Design, cfg.Environment, cfg.Evaluation, cfg.Run})
}
