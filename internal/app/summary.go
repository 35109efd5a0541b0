package app

import (
	"fmt"
	"strings"

	"arbiter/internal/config"
	"arbiter/internal/gateway/backend"
	"arbiter/internal/prompt"
)

type StartupSummary struct {
	HTTPAddr       string
	TimeoutSeconds int
	DefaultModels  []string
	Backends       []backend.Descriptor
	Prompts        []string
	PromptDefault  string
	Arbitration    bool
}

func newStartupSummary(cfg *config.Config, reg *backend.Registry, prompts *prompt.Registry, arbitration bool) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr:       cfg.App.HTTPAddr,
		TimeoutSeconds: cfg.Session.TimeoutSeconds,
		DefaultModels:  cfg.Session.DefaultModels,
		Backends:       reg.Describe(),
		PromptDefault:  cfg.Prompt.PromptID + "@" + cfg.Prompt.PromptVersion,
		Arbitration:    arbitration,
	}
	if prompts != nil {
		for _, tpl := range prompts.Snapshot().Templates() {
			s.Prompts = append(s.Prompts, tpl.ID+"@"+tpl.Version)
		}
	}
	return s
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("STARTUP SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "[http] listen %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "[session] timeout=%ds default_models=%s\n", s.TimeoutSeconds, formatList(s.DefaultModels))
	b.WriteString("[backends]\n")
	if len(s.Backends) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, d := range s.Backends {
		fmt.Fprintf(&b, "  - %s kind=%s model=%s\n", d.ID, d.Kind, d.Model)
	}
	fmt.Fprintf(&b, "[prompts] default=%s loaded=%s\n", s.PromptDefault, formatList(s.Prompts))
	fmt.Fprintf(&b, "[arbitration] enabled=%t\n", s.Arbitration)
	b.WriteString(strings.Repeat("=", 60))
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
