package config

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	LoadPolicyFailFast   = "failfast"
	LoadPolicyBestEffort = "besteffort"
)

type FieldDef struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Offset int    `yaml:"offset"`
	// only used by string fields
	Size int `yaml:"size,omitempty"`
}

type ChunkVersion struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
}

type PropertyDef struct {
	Name string `yaml:"name"`
	// chunk name without the P$ prefix, defaults to Name
	Chunk   string       `yaml:"chunk,omitempty"`
	Inherit string       `yaml:"inherit"`
	Version ChunkVersion `yaml:"version"`
	Fields  []FieldDef   `yaml:"fields,omitempty"`
}

func (pd *PropertyDef) ChunkName() string {
	if pd.Chunk != "" {
		return pd.Chunk
	}
	return pd.Name
}

type Config struct {
	Listen        string        `yaml:"listen"`
	WebPath       string        `yaml:"web_path"`
	ResourcePaths []string      `yaml:"resource_paths"`
	Encoding      string        `yaml:"encoding"`
	LoadPolicy    string        `yaml:"load_policy"`
	Properties    []PropertyDef `yaml:"properties"`
}

func Default() *Config {
	return &Config{
		Listen:        ":8000",
		WebPath:       "web",
		ResourcePaths: []string{"."},
		Encoding:      DefaultEncoding,
		LoadPolicy:    LoadPolicyFailFast,
		Properties:    DefaultProperties(),
	}
}

// DefaultProperties are the builtin property groups every engine instance
// carries even without a schema file.
func DefaultProperties() []PropertyDef {
	return []PropertyDef{
		{
			Name: "DonorType", Inherit: "never",
			Version: ChunkVersion{Major: 2, Minor: 4},
			Fields:  []FieldDef{{Name: "", Type: "int", Offset: 0}},
		},
		{
			Name: "SymbolicName", Inherit: "never",
			Version: ChunkVersion{Major: 2, Minor: 17},
			Fields:  []FieldDef{{Name: "", Type: "string", Offset: 0}},
		},
		{
			Name: "ModelName", Inherit: "always",
			Version: ChunkVersion{Major: 2, Minor: 16},
			Fields:  []FieldDef{{Name: "", Type: "string", Offset: 0, Size: 16}},
		},
		{
			Name: "RenderAlpha", Inherit: "always",
			Version: ChunkVersion{Major: 2, Minor: 4},
			Fields:  []FieldDef{{Name: "", Type: "float", Offset: 0}},
		},
		{
			Name: "Scale", Chunk: "ModelScale", Inherit: "archetype",
			Version: ChunkVersion{Major: 2, Minor: 4},
			Fields:  []FieldDef{{Name: "", Type: "vector", Offset: 0}},
		},
	}
}

func (c *Config) Validate() error {
	switch c.LoadPolicy {
	case LoadPolicyFailFast, LoadPolicyBestEffort:
	default:
		return errors.Errorf("Unknown load_policy %q", c.LoadPolicy)
	}

	names := make(map[string]bool)
	for _, pd := range c.Properties {
		if pd.Name == "" {
			return errors.Errorf("Property definition without name")
		}
		if names[pd.Name] {
			return errors.Errorf("Property %q defined twice", pd.Name)
		}
		names[pd.Name] = true
	}
	return nil
}

// Load reads a yaml config on top of the defaults. Missing file is not an
// error, the defaults are used instead.
func Load(path string) (*Config, error) {
	c := Default()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "Cannot read config %q", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "Cannot parse config %q", path)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Invalid config %q", path)
	}

	if err := SetEncoding(c.Encoding); err != nil {
		return nil, err
	}

	return c, nil
}
