package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("reject.out_of_turn", nil)
	if err != nil || s == "" {
		t.Fatalf("Render: %q %v", s, err)
	}
}

func TestRenderWithData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("notice.challenge_received", map[string]string{"Name": "alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if s != "alice has challenged you to a game." {
		t.Fatalf("unexpected render: %q", s)
	}
}

func TestRenderMissingKey(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if got := c.Text("no.such.key", "fallback", nil); got != "fallback" {
		t.Fatalf("Text fallback failed: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "reject:\n  out_of_turn: \"wait your turn\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("reject.out_of_turn", nil)
	if err != nil || s != "wait your turn" {
		t.Fatalf("override not applied: %q %v", s, err)
	}
	// untouched keys keep the embedded default
	if _, err := c.Render("reject.illegal_move", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}
