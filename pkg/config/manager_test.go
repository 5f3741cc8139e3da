package config

import (
	"fmt"
	"sync"
	"testing"
)

type mockSection struct {
	id          string
	data        map[string]interface{}
	validateErr error
}

func (m *mockSection) ID() string                                { return m.id }
func (m *mockSection) Title() string                             { return m.id }
func (m *mockSection) Description() string                       { return "" }
func (m *mockSection) Data() map[string]interface{}              { return m.data }
func (m *mockSection) SetData(data map[string]interface{}) error { m.data = data; return nil }
func (m *mockSection) Validate() error                           { return m.validateErr }
func (m *mockSection) Reset()                                    { m.data = map[string]interface{}{} }

type mockStore struct {
	sections map[string]map[string]interface{}
	loadErr  error
	saveErr  error
	saves    int
}

func newMockStore() *mockStore {
	return &mockStore{sections: make(map[string]map[string]interface{})}
}

func (m *mockStore) Load() error { return m.loadErr }

func (m *mockStore) Save() error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	return nil
}

func (m *mockStore) GetSection(id string) (map[string]interface{}, error) {
	return m.sections[id], nil
}

func (m *mockStore) SetSection(id string, data map[string]interface{}) error {
	m.sections[id] = data
	return nil
}

func (m *mockStore) GetAll() (map[string]map[string]interface{}, error) { return m.sections, nil }

func (m *mockStore) SetAll(data map[string]map[string]interface{}) error {
	m.sections = data
	return nil
}

func TestManager_RegisterSection(t *testing.T) {
	manager := NewManager(newMockStore())

	for _, id := range []string{"browser", "layout", "storage"} {
		if err := manager.RegisterSection(&mockSection{id: id}); err != nil {
			t.Fatalf("RegisterSection(%s) failed: %v", id, err)
		}
	}
	if err := manager.RegisterSection(&mockSection{id: "layout"}); err == nil {
		t.Error("expected error for duplicate section")
	}

	sections := manager.GetSections()
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	for i, want := range []string{"browser", "layout", "storage"} {
		if sections[i].ID() != want {
			t.Errorf("section %d: expected %s, got %s", i, want, sections[i].ID())
		}
	}

	if _, ok := manager.GetSection("missing"); ok {
		t.Error("expected missing section to be absent")
	}
}

func TestManager_LoadAll(t *testing.T) {
	t.Run("applies stored data", func(t *testing.T) {
		store := newMockStore()
		store.sections["a"] = map[string]interface{}{"key": "value"}
		manager := NewManager(store)
		section := &mockSection{id: "a"}
		manager.RegisterSection(section)

		if err := manager.LoadAll(); err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if section.data["key"] != "value" {
			t.Errorf("expected key=value, got %v", section.data["key"])
		}
	})

	t.Run("keeps defaults for absent sections", func(t *testing.T) {
		manager := NewManager(newMockStore())
		section := &mockSection{id: "a", data: map[string]interface{}{"default": true}}
		manager.RegisterSection(section)

		if err := manager.LoadAll(); err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if section.data["default"] != true {
			t.Error("defaults were overwritten")
		}
	})

	t.Run("store error", func(t *testing.T) {
		store := newMockStore()
		store.loadErr = fmt.Errorf("load error")
		if err := NewManager(store).LoadAll(); err == nil {
			t.Error("expected load error")
		}
	})

	t.Run("invalid section", func(t *testing.T) {
		store := newMockStore()
		store.sections["a"] = map[string]interface{}{"key": "value"}
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{id: "a", validateErr: fmt.Errorf("bad")})

		if err := manager.LoadAll(); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestManager_SaveAll(t *testing.T) {
	t.Run("writes every section", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{id: "a", data: map[string]interface{}{"k1": 1}})
		manager.RegisterSection(&mockSection{id: "b", data: map[string]interface{}{"k2": 2}})

		if err := manager.SaveAll(); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
		if store.sections["a"]["k1"] != 1 || store.sections["b"]["k2"] != 2 {
			t.Errorf("sections not stored: %v", store.sections)
		}
		if store.saves != 1 {
			t.Errorf("expected 1 save, got %d", store.saves)
		}
	})

	t.Run("validation error writes nothing", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{id: "a", data: map[string]interface{}{"k": 1}})
		manager.RegisterSection(&mockSection{id: "b", validateErr: fmt.Errorf("bad")})

		if err := manager.SaveAll(); err == nil {
			t.Fatal("expected validation error")
		}
		if len(store.sections) != 0 || store.saves != 0 {
			t.Error("store modified despite validation error")
		}
	})

	t.Run("store error", func(t *testing.T) {
		store := newMockStore()
		store.saveErr = fmt.Errorf("save error")
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{id: "a"})

		if err := manager.SaveAll(); err == nil {
			t.Error("expected save error")
		}
	})
}

func TestManager_ResetAll(t *testing.T) {
	manager := NewManager(newMockStore())
	section := &mockSection{id: "a", data: map[string]interface{}{"k": 1}}
	manager.RegisterSection(section)

	manager.ResetAll()
	if len(section.data) != 0 {
		t.Error("section not reset")
	}
}

func TestManager_ConcurrentRegistration(t *testing.T) {
	manager := NewManager(newMockStore())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			manager.RegisterSection(&mockSection{id: fmt.Sprintf("section%d", i)})
			manager.GetSections()
		}(i)
	}
	wg.Wait()

	if n := len(manager.GetSections()); n != 10 {
		t.Errorf("expected 10 sections, got %d", n)
	}
}
