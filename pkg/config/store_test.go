package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewFileStore(t *testing.T) {
	t.Run("missing file yields empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		store, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}
		if store.Path() != path {
			t.Errorf("expected path %s, got %s", path, store.Path())
		}
		all, _ := store.GetAll()
		if len(all) != 0 || store.IsModified() {
			t.Error("expected empty, unmodified store")
		}
	})

	t.Run("default path", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		store, err := NewFileStore("")
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}
		want, _ := DefaultPath()
		if store.Path() != want || !strings.HasSuffix(want, filepath.Join(".liebexplorer", "config.yaml")) {
			t.Errorf("unexpected default path %s", store.Path())
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte("{invalid"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFileStore(path); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestFileStore_LoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `version: "1.0"
sections:
  browser:
    headless: true
    max_instances: 4
    proxy_servers:
      - http://proxy-a:8080
      - http://proxy-b:8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	store := &FileStore{path: path}
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	browser, _ := store.GetSection("browser")
	if browser["headless"] != true {
		t.Errorf("expected headless=true, got %v", browser["headless"])
	}
	if browser["max_instances"] != 4 {
		t.Errorf("expected max_instances=4, got %v (%T)", browser["max_instances"], browser["max_instances"])
	}
	proxies, ok := browser["proxy_servers"].([]interface{})
	if !ok || len(proxies) != 2 {
		t.Errorf("unexpected proxy_servers %v", browser["proxy_servers"])
	}
}

func TestFileStore_SaveFormats(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		decode func([]byte, interface{}) error
	}{
		{name: "yaml", file: "config.yaml", decode: yaml.Unmarshal},
		{name: "json", file: "config.json", decode: json.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tt.file)
			store, err := NewFileStore(path)
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			store.SetSection("storage", map[string]interface{}{"backend": "sqlite"})
			if !store.IsModified() {
				t.Error("expected store to be modified")
			}
			if err := store.Save(); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if store.IsModified() {
				t.Error("expected store to be clean after save")
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temp file left behind")
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			var doc struct {
				Version  string                            `json:"version" yaml:"version"`
				Sections map[string]map[string]interface{} `json:"sections" yaml:"sections"`
			}
			if err := tt.decode(raw, &doc); err != nil {
				t.Fatalf("saved file does not decode: %v", err)
			}
			if doc.Version != "1.0" || doc.Sections["storage"]["backend"] != "sqlite" {
				t.Errorf("unexpected document %+v", doc)
			}

			reopened, err := NewFileStore(path)
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			section, _ := reopened.GetSection("storage")
			if section["backend"] != "sqlite" {
				t.Errorf("expected backend=sqlite after reopen, got %v", section["backend"])
			}
		})
	}
}

func TestFileStore_CopiesData(t *testing.T) {
	store, _ := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	input := map[string]interface{}{"key": "value"}
	store.SetSection("s", input)
	input["key"] = "changed"

	got, _ := store.GetSection("s")
	if got["key"] != "value" {
		t.Error("SetSection kept a reference to the input")
	}
	got["key"] = "mutated"
	again, _ := store.GetSection("s")
	if again["key"] != "value" {
		t.Error("GetSection returned internal state")
	}

	store.SetAll(map[string]map[string]interface{}{"x": {"a": 1}})
	all, _ := store.GetAll()
	if len(all) != 1 || all["x"]["a"] != 1 {
		t.Errorf("unexpected GetAll result %v", all)
	}
}
