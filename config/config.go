// Package config loads the framehost configuration file.
//
// A file is checked against an embedded CUE schema before it is decoded,
// so type and range errors carry the offending path. Decoding starts from
// Default, so absent keys keep their default values. Command-line flags
// are applied on top by the caller and the result is checked again with
// Validate.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/logging"
	"github.com/wippyai/wasm-frame-host/sandbox"
)

// DefaultFile is the file name looked up when no path is given.
const DefaultFile = "framehost.yaml"

// Surfaces.
const (
	SurfaceTUI      = "tui"
	SurfaceWeb      = "web"
	SurfaceHeadless = "headless"
)

//go:embed schema.cue
var schemaSource string

// Config is the complete host configuration.
type Config struct {
	Engine  Engine            `yaml:"engine"`
	Frame   Frame             `yaml:"frame"`
	Surface string            `yaml:"surface"`
	Web     Web               `yaml:"web"`
	Keys    map[string]string `yaml:"keys,omitempty"`
	Log     logging.Config    `yaml:"log"`
}

// Engine selects what to run and on which backend.
type Engine struct {
	// Path is a .wasm or .wat file. Mutually exclusive with Native.
	Path string `yaml:"path,omitempty"`
	// Native names a registered Go engine.
	Native  string `yaml:"native,omitempty"`
	Backend string `yaml:"backend"`
	// Mode, when set, must match the mode the module declares.
	Mode             string `yaml:"mode,omitempty"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty"`
	CacheSize        int    `yaml:"cache_size,omitempty"`
}

// Frame configures scheduling and the drawing surface.
type Frame struct {
	FPS    int `yaml:"fps"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Seed seeds the platform random source. 0 means time-based.
	Seed int64 `yaml:"seed,omitempty"`
	// KeyHoldMS is how long a key counts as held after its last press on
	// surfaces that only report presses.
	KeyHoldMS int `yaml:"key_hold_ms"`
}

// Web configures the browser surface.
type Web struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: Engine{
			Backend: engine.WazeroName,
		},
		Frame: Frame{
			FPS:       60,
			Width:     int(sandbox.WorldWidth),
			Height:    int(sandbox.WorldHeight),
			KeyHoldMS: int(input.DefaultHold / time.Millisecond),
		},
		Surface: SurfaceTUI,
		Web:     Web{Addr: "127.0.0.1:8080"},
		Log:     logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads and validates the file at path. A missing DefaultFile is not
// an error; any other missing file is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			cfg.applyDefaults()
			return cfg, cfg.Validate()
		}
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it over Default.
func Parse(name string, data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := checkSchema(name, data); err != nil {
			return Config{}, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode "+name)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills choices that depend on other settings.
func (c *Config) applyDefaults() {
	if c.Engine.Path == "" && c.Engine.Native == "" {
		c.Engine.Native = sandbox.PullName
		if c.Engine.Mode == "push" {
			c.Engine.Native = sandbox.PushName
		}
	}
	if c.Engine.Backend == "" {
		c.Engine.Backend = engine.WazeroName
	}
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	invalid := func(path, format string, args ...any) error {
		return errors.InvalidData(errors.PhaseConfig, []string{path}, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Engine.Path != "" && c.Engine.Native != "":
		return invalid("engine", "path %q and native %q are mutually exclusive", c.Engine.Path, c.Engine.Native)
	case c.Engine.Path == "" && c.Engine.Native == "":
		return invalid("engine", "one of path or native is required")
	}
	if !isWasmBackend(c.Engine.Backend) {
		return invalid("engine.backend", "unknown backend %q", c.Engine.Backend)
	}
	switch c.Engine.Mode {
	case "", "pull", "push":
	default:
		return invalid("engine.mode", "unknown mode %q", c.Engine.Mode)
	}
	if c.Engine.Native == sandbox.PullName && c.Engine.Mode == "push" {
		return invalid("engine.mode", "native engine %q is pull mode", c.Engine.Native)
	}
	if c.Engine.Native == sandbox.PushName && c.Engine.Mode == "pull" {
		return invalid("engine.mode", "native engine %q is push mode", c.Engine.Native)
	}
	switch c.Surface {
	case SurfaceTUI, SurfaceWeb, SurfaceHeadless:
	default:
		return invalid("surface", "unknown surface %q", c.Surface)
	}
	if c.Surface == SurfaceWeb && c.Web.Addr == "" {
		return invalid("web.addr", "web surface needs an address")
	}
	if c.Frame.FPS <= 0 {
		return invalid("frame.fps", "must be positive, got %d", c.Frame.FPS)
	}
	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		return invalid("frame", "size %dx%d must be positive", c.Frame.Width, c.Frame.Height)
	}
	if _, err := c.Keymap(); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "keys")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "log.level")
	}
	return nil
}

func isWasmBackend(name string) bool {
	if name == engine.NativeName {
		return false
	}
	for _, b := range engine.Backends() {
		if b == name {
			return true
		}
	}
	return false
}

// Keymap returns the default bindings with the configured ones on top.
func (c Config) Keymap() (input.Keymap, error) {
	custom, err := input.ParseKeymap(c.Keys)
	if err != nil {
		return nil, err
	}
	return input.DefaultKeymap().Merge(custom), nil
}

// KeyHold returns the configured key hold duration.
func (c Config) KeyHold() time.Duration {
	return time.Duration(c.Frame.KeyHoldMS) * time.Millisecond
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Schema returns the CUE schema files are checked against.
func Schema() string { return schemaSource }

// compileSchema builds the #Config definition. A cue.Context is not safe
// for concurrent use, so every check gets its own.
func compileSchema() (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, err
	}
	def := v.LookupPath(cue.ParsePath("#Config"))
	return def, def.Err()
}

func checkSchema(name string, data []byte) error {
	def, err := compileSchema()
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "compile schema")
	}
	if err := cueyaml.Validate(data, def); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(name).
			Detail("%s", cueerrors.Details(err, nil)).
			Cause(err).
			Build()
	}
	return nil
}
