package render_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/fakeyudi/gitsession/internal/render"
	"github.com/fakeyudi/gitsession/internal/session"
)

func genState(t *rapid.T) session.State {
	name := rapid.StringMatching(`[A-Za-z0-9./-]{0,30}`)
	return session.State{
		CurrentBranch:         name.Draw(t, "current"),
		CurrentCommit:         rapid.StringMatching(`[0-9a-f]{0,40}`).Draw(t, "commit"),
		ParentBranch:          name.Draw(t, "parent"),
		SessionBranch:         name.Draw(t, "session"),
		IsActive:              rapid.Bool().Draw(t, "active"),
		HasUncommittedChanges: rapid.Bool().Draw(t, "dirty"),
		ManageSubmodules:      rapid.Bool().Draw(t, "subs"),
	}
}

// Feature: gitsession, Property: JSON and YAML status output decode back to
// the rendered state.
func TestStructuredRenderersRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		st := genState(t)

		data, err := (&render.JSONRenderer{}).Render(st)
		if err != nil {
			t.Fatalf("json: %v", err)
		}
		var fromJSON session.State
		if err := json.Unmarshal(data, &fromJSON); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		if fromJSON != st {
			t.Fatalf("json mismatch: %+v != %+v", fromJSON, st)
		}

		data, err = (&render.YAMLRenderer{}).Render(st)
		if err != nil {
			t.Fatalf("yaml: %v", err)
		}
		var fromYAML session.State
		if err := yaml.Unmarshal(data, &fromYAML); err != nil {
			t.Fatalf("yaml decode: %v", err)
		}
		if fromYAML != st {
			t.Fatalf("yaml mismatch: %+v != %+v", fromYAML, st)
		}
	})
}

func TestJSONFieldNames(t *testing.T) {
	data, err := (&render.JSONRenderer{}).Render(session.State{CurrentBranch: "main", IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"current_branch": "main"`, `"is_active": true`, `"parent_branch"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("missing %s in %s", key, data)
		}
	}
}

func TestTextRenderer(t *testing.T) {
	st := session.State{
		CurrentBranch:         "session-260304-050607",
		CurrentCommit:         "0123456789abcdef0123",
		ParentBranch:          "main",
		SessionBranch:         "session-260304-050607",
		IsActive:              true,
		HasUncommittedChanges: true,
	}
	data, err := (&render.TextRenderer{}).Render(st)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"active", "session-260304-050607", "0123456789ab", "main", "uncommitted changes", "off"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abc") {
		t.Error("commit should be abbreviated")
	}
}

func TestTextRendererIdle(t *testing.T) {
	data, err := (&render.TextRenderer{}).Render(session.State{CurrentBranch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "idle") || !strings.Contains(string(data), "(none)") {
		t.Errorf("unexpected output:\n%s", data)
	}
}

func TestForFormat(t *testing.T) {
	for name, want := range map[string]render.StateRenderer{
		"":     &render.TextRenderer{},
		"text": &render.TextRenderer{},
		"JSON": &render.JSONRenderer{},
		"yml":  &render.YAMLRenderer{},
	} {
		r, err := render.ForFormat(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if fmt.Sprintf("%T", r) != fmt.Sprintf("%T", want) {
			t.Errorf("%q: got %T, want %T", name, r, want)
		}
	}
	if _, err := render.ForFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
