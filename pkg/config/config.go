// Package config loads and saves LiebExplorer settings.
//
// Settings are grouped in sections (browser, layout, orchestrator, storage)
// registered on a Manager and persisted by a Store. The default store is a
// YAML file at ~/.liebexplorer/config.yaml; a .json path selects JSON.
package config

// Load opens the file at path, registers the default sections and applies
// the stored values. A missing file yields the defaults.
func Load(path string) (*Manager, error) {
	store, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewBrowserSection(),
		NewLayoutSection(),
		NewOrchestratorSection(),
		NewStorageSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Browser returns the browser section, or nil if it is not registered.
func (m *Manager) Browser() *BrowserSection {
	return sectionAs[*BrowserSection](m, SectionIDBrowser)
}

// Layout returns the layout section, or nil if it is not registered.
func (m *Manager) Layout() *LayoutSection {
	return sectionAs[*LayoutSection](m, SectionIDLayout)
}

// Orchestrator returns the orchestrator section, or nil if it is not
// registered.
func (m *Manager) Orchestrator() *OrchestratorSection {
	return sectionAs[*OrchestratorSection](m, SectionIDOrchestrator)
}

// Storage returns the storage section, or nil if it is not registered.
func (m *Manager) Storage() *StorageSection {
	return sectionAs[*StorageSection](m, SectionIDStorage)
}

func sectionAs[T Section](m *Manager, id string) T {
	var zero T
	section, ok := m.GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}
