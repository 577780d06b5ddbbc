// Package render formats session state for the status command.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/gitsession/internal/session"
)

// Output formats accepted by ForFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// StateRenderer serializes a State to bytes.
type StateRenderer interface {
	Render(st session.State) ([]byte, error)
}

// ForFormat returns the renderer for name. An empty name selects text.
func ForFormat(name string) (StateRenderer, error) {
	switch strings.ToLower(name) {
	case "", FormatText:
		return &TextRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatYAML, "yml":
		return &YAMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q: want text, json or yaml", name)
}

// JSONRenderer renders a State as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(st session.State) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// YAMLRenderer renders a State as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(st session.State) ([]byte, error) {
	return yaml.Marshal(st)
}

var (
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(16)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dirtyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// TextRenderer renders a State as aligned, human readable lines.
type TextRenderer struct{}

func (r *TextRenderer) Render(st session.State) ([]byte, error) {
	var sb strings.Builder

	phase := idleStyle.Render(st.Phase())
	if st.IsActive {
		phase = activeStyle.Render(st.Phase())
	}
	line(&sb, "Session", phase)
	line(&sb, "Branch", orNone(st.CurrentBranch))
	commit := st.CurrentCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	line(&sb, "Commit", orNone(commit))
	line(&sb, "Session branch", orNone(st.SessionBranch))
	line(&sb, "Parent", orNone(st.ParentBranch))

	changes := "clean"
	if st.HasUncommittedChanges {
		changes = dirtyStyle.Render("uncommitted changes")
	}
	line(&sb, "Working tree", changes)

	subs := "off"
	if st.ManageSubmodules {
		subs = "on"
	}
	line(&sb, "Submodules", subs)

	return []byte(sb.String()), nil
}

func line(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(label + ":"))
	sb.WriteString(value)
	sb.WriteString("\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
