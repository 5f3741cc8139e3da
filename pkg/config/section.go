package config

// Section is one named group of settings persisted under its ID.
type Section interface {
	ID() string
	Title() string
	Description() string

	// Data returns the settings as plain values suitable for JSON or YAML.
	Data() map[string]interface{}

	// SetData applies the keys present in data. Unknown keys are ignored.
	SetData(data map[string]interface{}) error

	Validate() error

	// Reset restores the defaults.
	Reset()
}
