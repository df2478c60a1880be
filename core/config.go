package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlaceholderPolicy decides what view a detached parameter carries.
type PlaceholderPolicy int

const (
	// PlaceholderEmpty: a zero-length view on the parameter's device.
	PlaceholderEmpty PlaceholderPolicy = iota
	// PlaceholderZeroElement: a single zero-valued element. Some consumers
	// initialize through the detached view (padding-index weights), so a
	// non-empty placeholder is required for them.
	PlaceholderZeroElement
)

// ChunkConfig groups chunk layout parameters.
type ChunkConfig struct {
	CapacityElems int64  `yaml:"capacity_elems"` // elements per chunk (must be > 0)
	DType         string `yaml:"dtype"`          // "float32" (default) or "float16"
	Placeholder   string `yaml:"placeholder"`    // "empty" (default) or "zero_element"
}

// Config is the full chunk-manager configuration, loadable from YAML.
type Config struct {
	Chunk  ChunkConfig  `yaml:"chunk"`
	Tracer TracerConfig `yaml:"mem_tracer"`
}

// DefaultConfig returns the production defaults for a given chunk size.
func DefaultConfig(capacityElems int64) Config {
	return Config{
		Chunk: ChunkConfig{
			CapacityElems: capacityElems,
			DType:         "float32",
			Placeholder:   "empty",
		},
		Tracer: DefaultTracerConfig(),
	}
}

// rawTracerConfig is the YAML decode target for the tracer section. The
// sampler fields are pointers so an omitted key is distinguishable from an
// explicit false/zero and can take the production default.
type rawTracerConfig struct {
	OverallAccelRatio     float64 `yaml:"overall_accel_mem_ratio"`
	OverallHostRatio      float64 `yaml:"overall_host_mem_ratio"`
	WarmupAccelChunkRatio float64 `yaml:"warmup_accel_chunk_mem_ratio"`
	MarginUseRatio        float64 `yaml:"margin_use_ratio"`
	UseAsyncMemMonitor    *bool   `yaml:"use_async_mem_monitor"`
	SampleIntervalMS      *int64  `yaml:"sample_interval_ms"`
}

// LoadConfig reads and parses a YAML configuration file. Omitted or
// zero-valued tracer fields take the production defaults; an explicit
// `use_async_mem_monitor: false` is honored.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var raw struct {
		Chunk  ChunkConfig     `yaml:"chunk"`
		Tracer rawTracerConfig `yaml:"mem_tracer"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg := Config{Chunk: raw.Chunk, Tracer: DefaultTracerConfig()}
	if raw.Tracer.OverallAccelRatio != 0 {
		cfg.Tracer.OverallAccelRatio = raw.Tracer.OverallAccelRatio
	}
	if raw.Tracer.OverallHostRatio != 0 {
		cfg.Tracer.OverallHostRatio = raw.Tracer.OverallHostRatio
	}
	if raw.Tracer.WarmupAccelChunkRatio != 0 {
		cfg.Tracer.WarmupAccelChunkRatio = raw.Tracer.WarmupAccelChunkRatio
	}
	if raw.Tracer.MarginUseRatio != 0 {
		cfg.Tracer.MarginUseRatio = raw.Tracer.MarginUseRatio
	}
	if raw.Tracer.UseAsyncMemMonitor != nil {
		cfg.Tracer.UseAsyncMemMonitor = *raw.Tracer.UseAsyncMemMonitor
	}
	if raw.Tracer.SampleIntervalMS != nil {
		cfg.Tracer.SampleIntervalMS = *raw.Tracer.SampleIntervalMS
	}
	return &cfg, nil
}

// dtype parses the configured element type.
func (c ChunkConfig) dtype() DType {
	switch c.DType {
	case "", "float32":
		return Float32
	case "float16":
		return Float16
	default:
		panic(fmt.Sprintf("ChunkConfig: unknown dtype %q", c.DType))
	}
}

// placeholder parses the configured placeholder policy.
func (c ChunkConfig) placeholder() PlaceholderPolicy {
	switch c.Placeholder {
	case "", "empty":
		return PlaceholderEmpty
	case "zero_element":
		return PlaceholderZeroElement
	default:
		panic(fmt.Sprintf("ChunkConfig: unknown placeholder policy %q", c.Placeholder))
	}
}
