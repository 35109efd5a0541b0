package prompt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"arbiter/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	placeholderQuestion = "<USER_QUESTION>"
	placeholderHistory  = "<CONTEXT_HISTORY>"
)

// Template is one versioned prompt.
type Template struct {
	ID       string `yaml:"id"`
	Version  string `yaml:"version"`
	Template string `yaml:"template"`
	Hash     string `yaml:"-"`
}

type fileConfig struct {
	Prompts []Template `yaml:"prompts"`
}

// Snapshot is an immutable view of the registry. A reload publishes a new snapshot;
// holders of an older one keep seeing it unchanged.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	templates map[string]Template
}

func key(id, version string) string {
	return strings.TrimSpace(id) + "@" + strings.TrimSpace(version)
}

// Lookup finds a template by id and version.
func (s *Snapshot) Lookup(id, version string) (Template, bool) {
	if s == nil {
		return Template{}, false
	}
	tpl, ok := s.templates[key(id, version)]
	return tpl, ok
}

// Templates lists the snapshot's templates sorted by id and version.
func (s *Snapshot) Templates() []Template {
	if s == nil {
		return nil
	}
	out := make([]Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Render fills the template's placeholders with question. An unknown template yields the bare
// question and an empty hash.
func (s *Snapshot) Render(id, version, question string) (string, string) {
	tpl, ok := s.Lookup(id, version)
	if !ok {
		return question, ""
	}
	rendered := strings.ReplaceAll(tpl.Template, placeholderQuestion, question)
	rendered = strings.ReplaceAll(rendered, placeholderHistory, "")
	return rendered, tpl.Hash
}

// Registry serves prompt templates from a YAML file, optionally reloading it on change.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewRegistry loads path. An empty path gives an empty registry whose Render passes questions through.
func NewRegistry(path string, watch bool) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path), snapshot: &Snapshot{templates: map[string]Template{}}}
	if r.path == "" {
		return r, nil
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		r.v = viper.New()
		r.v.SetConfigFile(r.path)
		r.v.OnConfigChange(func(evt fsnotify.Event) {
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				return
			}
			if err := r.reload(); err != nil {
				logger.Errorf("prompt registry reload failed: %v", err)
			}
		})
		r.v.WatchConfig()
	}
	return r, nil
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Render renders against a single snapshot, so one call never mixes two file versions.
func (r *Registry) Render(id, version, question string) (string, string) {
	prompt, hash := r.Snapshot().Render(id, version, question)
	if hash == "" {
		logger.Debugf("prompt %s not found, sending bare question", key(id, version))
	}
	return prompt, hash
}

func (r *Registry) reload() error {
	templates, err := readPromptFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	prev := r.snapshot.Version
	r.snapshot = &Snapshot{Version: prev + 1, LoadedAt: time.Now(), templates: templates}
	r.mu.Unlock()
	logger.Infof("prompt registry loaded %d templates from %s", len(templates), filepath.Base(r.path))
	return nil
}

// readPromptFile accepts either a top-level list of templates or a "prompts:" key holding one.
func readPromptFile(path string) (map[string]Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt registry failed: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("prompt registry %s is empty", filepath.Base(path))
	}
	var list []Template
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("-")) {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse prompt registry failed: %w", err)
		}
	} else {
		var cfg fileConfig
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse prompt registry failed: %w", err)
		}
		list = cfg.Prompts
	}
	out := make(map[string]Template, len(list))
	for i, tpl := range list {
		tpl.ID = strings.TrimSpace(tpl.ID)
		tpl.Version = strings.TrimSpace(tpl.Version)
		if tpl.ID == "" {
			return nil, fmt.Errorf("prompt #%d: id is required", i+1)
		}
		if tpl.Version == "" {
			tpl.Version = "v1"
		}
		k := key(tpl.ID, tpl.Version)
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("prompt %s defined twice", k)
		}
		sum := sha256.Sum256([]byte(tpl.Template))
		tpl.Hash = hex.EncodeToString(sum[:])
		out[k] = tpl
	}
	return out, nil
}
