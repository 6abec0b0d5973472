// Package config holds backend selection and parameters for Connect.
package config

import "github.com/mistfall/mistfall/pkg/mistfallerr"

// Supported adapter names.
const (
	AdapterAuto       = "auto"
	AdapterMemory     = "memory"
	AdapterPersistent = "persistent"
)

var knownAdapters = map[string]bool{
	AdapterAuto:       true,
	AdapterMemory:     true,
	AdapterPersistent: true,
}

// Config selects a backend adapter and, for the persistent adapter, where
// its database file lives.
type Config struct {
	Adapter string `json:"adapter" yaml:"adapter"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Validate checks that the Config is well-formed, returning a sentinel
// error from mistfallerr on failure.
func (c Config) Validate() error {
	if c.Adapter == "" {
		return mistfallerr.ErrAdapterEmpty
	}
	if !knownAdapters[c.Adapter] {
		return mistfallerr.ErrAdapterUnknown
	}
	return nil
}
