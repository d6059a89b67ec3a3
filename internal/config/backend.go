package config

// Backend is the persistent, user-editable layer of the configuration:
// `defaults` on macOS, a YAML file elsewhere. Keys are the dotted names
// from the key table ("server.port").
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	// Delete removes key; removing an absent key is not an error.
	Delete(key string) error
}
