// Package config loads segmentation settings from YAML files.
//
// A file lists one or more named segmentations, each describing a detector
// and the chunking around it:
//
//	segmentations:
//	  - name: drilling
//	    estimated_cps: 360
//	    model: l2
//	    model_parameters: 2
//	    penalty_term: BIC
//	    algorithm: PELT
//	    min_segment_size: 500
//	    jump_points: 50
//	    chunk_size: 40000
//	    overlap_region: 300
//	    min_cp_distance: 1400
//	    filter_close_cps: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chunkcpd"
	"github.com/hupe1980/chunkcpd/detect"
)

// ErrInvalid is returned for files that fail validation.
var ErrInvalid = errors.New("config: invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("penalty", func(fl validator.FieldLevel) bool {
		_, err := detect.ParsePenaltyKind(fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("algorithm", func(fl validator.FieldLevel) bool {
		_, err := detect.ParseAlgorithm(fl.Field().String(), detect.Params{}, 0)
		return err == nil
	})
}

// File is the root of a configuration file.
type File struct {
	Segmentations []Config  `yaml:"segmentations" validate:"required,min=1,unique=Name,dive"`
	Archive       Archive   `yaml:"archive"`
	Resources     Resources `yaml:"resources"`
}

// Config describes one segmentation.
type Config struct {
	Name       string `yaml:"name" validate:"required"`
	Process    string `yaml:"process"`
	TargetPath string `yaml:"target_path"`

	EstimatedCPs    int    `yaml:"estimated_cps" validate:"gte=0"`
	Model           string `yaml:"model" validate:"required,oneof=l1 l2 normal rbf linear cosine"`
	ModelParameters int    `yaml:"model_parameters" validate:"gte=0"`
	PenaltyTerm     string `yaml:"penalty_term" validate:"omitempty,penalty"`
	WhitenPenalty   bool   `yaml:"whiten_penalty"`

	Algorithm      string `yaml:"algorithm" validate:"required,algorithm"`
	MinSegmentSize int    `yaml:"min_segment_size" validate:"gte=0"`
	JumpPoints     int    `yaml:"jump_points" validate:"gte=0"`
	Window         int    `yaml:"window" validate:"gte=0"`

	ChunkSize      int  `yaml:"chunk_size" validate:"gte=0"`
	OverlapRegion  *int `yaml:"overlap_region" validate:"omitempty,gte=0"`
	MinCPDistance  int  `yaml:"min_cp_distance" validate:"gte=0,required_if=FilterCloseCPs true"`
	FilterCloseCPs bool `yaml:"filter_close_cps"`
	Workers        int  `yaml:"workers" validate:"gte=0"`
	StandardScale  bool `yaml:"standard_scaling"`
}

// Archive configures where runs are stored.
type Archive struct {
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression" validate:"omitempty,oneof=none lz4 zstd"`
	Codec       string `yaml:"codec" validate:"omitempty,oneof=json go-json"`
}

// Resources bounds concurrent work.
type Resources struct {
	MaxDetectors       int64 `yaml:"max_detectors" validate:"gte=0"`
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes" validate:"gte=0"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec" validate:"gte=0"`
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Load reads the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(bytes.NewReader(data))
}

// Validate checks every field.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}

// Get returns the segmentation called name.
func (f *File) Get(name string) (Config, bool) {
	for _, c := range f.Segmentations {
		if c.Name == name {
			return c, true
		}
	}

	return Config{}, false
}

// Detector builds the detector described by c.
func (c Config) Detector(backend detect.Backend, logger *slog.Logger) (*detect.Detector, error) {
	params := detect.Params{MinSize: c.MinSegmentSize, Jump: c.JumpPoints}

	alg, err := detect.ParseAlgorithm(c.Algorithm, params, c.Window)
	if err != nil {
		return nil, err
	}

	return detect.New(detect.Config{
		Algorithm:    alg,
		Model:        detect.Model(c.Model),
		ChangePoints: c.EstimatedCPs,
		Penalty:      c.PenaltyTerm,
		ModelParams:  c.ModelParameters,
		Whiten:       c.WhitenPenalty,
		Backend:      backend,
		Logger:       logger,
	})
}

// Options returns the segmenter options described by c. Unset sizes keep
// the segmenter defaults.
func (c Config) Options() []chunkcpd.Option {
	var opts []chunkcpd.Option

	if c.ChunkSize > 0 {
		opts = append(opts, chunkcpd.WithChunkSize(c.ChunkSize))
	}

	if c.OverlapRegion != nil {
		opts = append(opts, chunkcpd.WithOverlap(*c.OverlapRegion))
	}

	if c.FilterCloseCPs {
		opts = append(opts, chunkcpd.WithMinDistance(c.MinCPDistance))
	}

	if c.Workers > 0 {
		opts = append(opts, chunkcpd.WithWorkers(c.Workers))
	}

	if c.StandardScale {
		opts = append(opts, chunkcpd.WithStandardScaling())
	}

	return opts
}
