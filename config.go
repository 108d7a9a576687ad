package kdgo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/coord"
	"github.com/hupe1980/kdgo/kdtree"
)

// Config is the file form of the build and storage options.
//
//	name: stars
//	leaf_size: 16
//	bounding_boxes: false
//	split_planes: packed
//	internal_kind: u32
//	range: {min: [0, 0, 0], max: [360, 90, 1]}
//	compression: zstd
type Config struct {
	Name          string       `yaml:"name"`
	LeafSize      int          `yaml:"leaf_size"`
	BoundingBoxes *bool        `yaml:"bounding_boxes"`
	SplitPlanes   string       `yaml:"split_planes"`
	SplitRule     string       `yaml:"split_rule"`
	LinearLR      bool         `yaml:"linear_lr"`
	InternalKind  string       `yaml:"internal_kind"`
	Range         *RangeConfig `yaml:"range"`
	Compression   string       `yaml:"compression"`
	WriteLimit    int          `yaml:"write_limit"`
	Workers       int          `yaml:"workers"`
}

// RangeConfig fixes the quantization range of integer trees.
type RangeConfig struct {
	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`
}

// ParseConfig decodes a YAML config. Unknown keys are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("kdgo: parse config: %w", err)
	}
	return &c, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(bytes.NewReader(data))
}

// Options converts the config to Build/Load options.
func (c *Config) Options() ([]Option, error) {
	var tree []kdtree.Option
	if c.LeafSize != 0 {
		tree = append(tree, kdtree.WithLeafSize(c.LeafSize))
	}
	if c.BoundingBoxes != nil {
		tree = append(tree, kdtree.WithBoundingBoxes(*c.BoundingBoxes))
	}
	switch strings.ToLower(c.SplitPlanes) {
	case "", "none":
	case "packed":
		tree = append(tree, kdtree.WithSplitPlanes(kdtree.SplitDimPacked))
	case "array":
		tree = append(tree, kdtree.WithSplitPlanes(kdtree.SplitDimArray))
	default:
		return nil, &ErrInvalidOptions{Reason: fmt.Sprintf("unknown split_planes %q", c.SplitPlanes)}
	}
	switch strings.ToLower(c.SplitRule) {
	case "", "widest":
	case "round_robin", "roundrobin":
		tree = append(tree, kdtree.WithSplitRule(kdtree.SplitRoundRobin))
	default:
		return nil, &ErrInvalidOptions{Reason: fmt.Sprintf("unknown split_rule %q", c.SplitRule)}
	}
	if c.LinearLR {
		tree = append(tree, kdtree.WithLinearLR(true))
	}
	if c.InternalKind != "" {
		k, err := coord.ParseKind(c.InternalKind)
		if err != nil {
			return nil, &ErrInvalidOptions{Reason: err.Error(), cause: err}
		}
		tree = append(tree, kdtree.WithInternalKind(k))
	}
	if c.Range != nil {
		tree = append(tree, kdtree.WithRange(c.Range.Min, c.Range.Max))
	}

	codec, err := chunkstore.ParseCodec(strings.ToLower(c.Compression))
	if err != nil {
		return nil, &ErrInvalidOptions{Reason: err.Error(), cause: err}
	}

	opts := []Option{
		WithTreeOptions(tree...),
		WithCompression(codec),
		WithWriteLimit(c.WriteLimit),
		WithWorkers(c.Workers),
	}
	if c.Name != "" {
		opts = append(opts, WithName(c.Name))
	}
	return opts, nil
}
