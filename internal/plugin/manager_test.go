package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePlugin(t *testing.T, root, dir string, manifest any, script string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	var data []byte
	switch m := manifest.(type) {
	case string:
		data = []byte(m)
	default:
		var err error
		if data, err = json.Marshal(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if script != "" {
		if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()

	writePlugin(t, root, "keys", Manifest{
		Name:       "keyboard",
		Version:    "1.0.0",
		Executable: "run.sh",
		Events:     []string{EventSlideChanged},
	}, "")
	writePlugin(t, root, "logger", Manifest{Name: "logger", Executable: "run.sh", Events: []string{"other"}}, "")
	writePlugin(t, root, "broken", "{not json", "")
	writePlugin(t, root, "nameless", Manifest{Executable: "run.sh"}, "")
	os.MkdirAll(filepath.Join(root, "empty"), 0755)
	os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644)

	m := NewManager(root, nil)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := m.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "keyboard" || plugins[1].Manifest.Name != "logger" {
		t.Errorf("expected sorted names, got %q %q", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}

	p, err := m.Get("keyboard")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Executable != filepath.Join(root, "keys", "run.sh") {
		t.Errorf("expected executable path inside plugin dir, got %q", p.Executable)
	}

	subs := m.Subscribers(EventSlideChanged)
	if len(subs) != 1 || subs[0].Manifest.Name != "keyboard" {
		t.Errorf("Subscribers() = %v", subs)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"), nil)
	if err := m.Discover(); err != nil {
		t.Errorf("Discover() on missing dir error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_RediscoverDropsRemoved(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, "a", Manifest{Name: "a", Executable: "run.sh"}, "")

	m := NewManager(root, nil)
	m.Discover()
	if len(m.List()) != 1 {
		t.Fatal("expected 1 plugin")
	}

	os.RemoveAll(dir)
	m.Discover()
	if len(m.List()) != 0 {
		t.Error("removed plugin still listed")
	}
}

func TestManifest_Handles(t *testing.T) {
	m := Manifest{Events: []string{"a", EventSlideChanged}}
	if !m.Handles(EventSlideChanged) || m.Handles("b") {
		t.Errorf("Handles() mismatch for %v", m.Events)
	}
}
