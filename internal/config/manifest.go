package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/deploykit/entrypoint/internal/model"
)

// SourceBuiltin is the Manifest.Source value for the built-in default
// manifest, used when no manifest file is found.
const SourceBuiltin = "builtin"

// manifestNames lists the manifest filenames probed by FindManifest,
// in priority order.
var manifestNames = []string{
	"bootstrap.yaml",
	"bootstrap.yml",
	"bootstrap.json",
	"bootstrap.jsonc",
}

// Step declares one bootstrap command. Steps run strictly in declaration
// order; each must finish before the next starts.
type Step struct {
	// Name is the step's unique identifier, used in logs, reports and
	// --skip flags.
	Name string `yaml:"name" json:"name"`

	// Command is the argv to invoke, executable first. Never passed
	// through a shell.
	Command []string `yaml:"command" json:"command"`

	// Env holds additional environment variables injected into the
	// command, on top of the inherited process environment.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Dir is the working directory for the command. Empty inherits the
	// manifest-level default (APP_ROOT, or the current directory).
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// AllowFailure marks a step whose non-zero exit does not abort the
	// run. Used for commands that fail benignly when their work is
	// already done, such as provisioning an admin account that exists.
	AllowFailure bool `yaml:"allow_failure,omitempty" json:"allowFailure,omitempty"`

	// Timeout bounds the command's runtime. Zero means no limit.
	Timeout model.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Serve declares the long-running server the sequencer hands off to after
// all steps complete.
type Serve struct {
	// Command is the full server argv, executable first.
	Command []string `yaml:"command" json:"command"`

	// Bind is the host:port the server is expected to listen on. Used by
	// the preflight port probe and the child-mode readiness wait; the
	// server itself must be told the address via its own argv or env.
	Bind string `yaml:"bind,omitempty" json:"bind,omitempty"`

	// Mode selects exec handoff (default) or supervised child mode.
	Mode model.ServeMode `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Dir is the server's working directory. Empty inherits the
	// manifest-level default.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Env holds additional environment variables for the server process.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Manifest is the resolved boot sequence: ordered steps plus the serve
// handoff. Instances always come out of LoadManifest or DefaultManifest
// already rendered, defaulted and validated.
type Manifest struct {
	Steps []Step `yaml:"steps" json:"steps"`
	Serve Serve  `yaml:"serve" json:"serve"`

	// Source records where the manifest came from: a file path, or
	// SourceBuiltin for the compiled-in default.
	Source string `yaml:"-" json:"-"`
}

// Step returns the step with the given name, or nil.
func (m *Manifest) Step(name string) *Step {
	for i := range m.Steps {
		if m.Steps[i].Name == name {
			return &m.Steps[i]
		}
	}
	return nil
}

// FindManifest searches dir for a boot manifest using the standard
// filenames. Returns the path and true if one exists.
func FindManifest(dir string) (string, bool) {
	for _, name := range manifestNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadManifest reads, renders, defaults and validates a manifest file.
//
// The decoder is chosen by extension: .yaml/.yml use yaml.v3, .json/.jsonc
// are stripped of comments with the jsonc package first (the same
// convention devcontainer.json uses). After decoding, string fields are
// rendered as sprig templates, then environment-derived defaults (bind
// address, working directory) are applied.
func LoadManifest(path string, e *Env) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("reading manifest %s", path), err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("parsing manifest %s", path), err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("parsing manifest %s", path), err)
		}
	default:
		return nil, model.NewCLIError(model.ExitConfigError, fmt.Sprintf("unsupported manifest format %q (expected .yaml, .yml, .json or .jsonc)", filepath.Ext(path)))
	}

	m.Source = path

	if err := m.render(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("rendering manifest %s", path), err)
	}
	m.applyDefaults(e)
	if err := m.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("invalid manifest %s", path), err)
	}
	return &m, nil
}

// applyDefaults fills fields the manifest left empty from the environment:
// the serve bind address and mode, and the working directory for every
// step and the server.
func (m *Manifest) applyDefaults(e *Env) {
	if m.Serve.Mode == "" {
		m.Serve.Mode = model.ModeExec
	}
	if m.Serve.Bind == "" {
		m.Serve.Bind = e.BindAddr
	}
	if m.Serve.Dir == "" {
		m.Serve.Dir = e.AppRoot
	}
	for i := range m.Steps {
		if m.Steps[i].Dir == "" {
			m.Steps[i].Dir = e.AppRoot
		}
	}
}

// Validate checks structural invariants: unique valid step names,
// non-empty commands, a parseable bind address and a known serve mode.
// The serve mode is normalized to its canonical lowercase form.
func (m *Manifest) Validate() error {
	if len(m.Steps) == 0 && len(m.Serve.Command) == 0 {
		return fmt.Errorf("manifest declares no steps and no serve command")
	}

	seen := make(map[string]bool, len(m.Steps))
	for i := range m.Steps {
		step := &m.Steps[i]
		if err := model.ValidateStepName(step.Name); err != nil {
			return err
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = true
		if len(step.Command) == 0 || step.Command[0] == "" {
			return fmt.Errorf("step %q has no command", step.Name)
		}
	}

	if len(m.Serve.Command) > 0 {
		mode, err := model.ParseServeMode(m.Serve.Mode.String())
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		m.Serve.Mode = mode
		if _, _, err := net.SplitHostPort(m.Serve.Bind); err != nil {
			return fmt.Errorf("serve: invalid bind address %q: %w", m.Serve.Bind, err)
		}
	}
	return nil
}

// render runs every string field of the manifest through the template
// engine. Strings without template markers pass through unchanged, so
// plain manifests pay nothing.
func (m *Manifest) render() error {
	for i := range m.Steps {
		step := &m.Steps[i]
		if err := renderSlice(step.Command); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		if err := renderMap(step.Env); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		rendered, err := renderString(step.Dir)
		if err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		step.Dir = rendered
	}

	if err := renderSlice(m.Serve.Command); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := renderMap(m.Serve.Env); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	for _, field := range []*string{&m.Serve.Bind, &m.Serve.Dir} {
		rendered, err := renderString(*field)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		*field = rendered
	}
	return nil
}

func renderSlice(values []string) error {
	for i, v := range values {
		rendered, err := renderString(v)
		if err != nil {
			return err
		}
		values[i] = rendered
	}
	return nil
}

func renderMap(values map[string]string) error {
	for k, v := range values {
		rendered, err := renderString(v)
		if err != nil {
			return err
		}
		values[k] = rendered
	}
	return nil
}

// renderString expands a single manifest value as a text/template with the
// sprig function set. The sprig `env` function is the main draw: it lets
// manifests pull values from the deployment environment at load time.
func renderString(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	tmpl, err := template.New("manifest").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("template %q: %w", s, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("template %q: %w", s, err)
	}
	return buf.String(), nil
}
