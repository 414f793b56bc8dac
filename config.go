package farmodbus

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Configuration is the process-wide, set-once-then-read-only configuration
// a Farm polls under, per spec.md §4.4. The only knob the original source
// exposes is the read function code, selected via a named preset; the
// overlay/env-file machinery below (grounded on EdgeFlow's config.go) gives
// room to grow that without touching Farm/Station call sites.
type Configuration struct {
	mu               sync.RWMutex
	readFunctionCode byte
}

// presets maps a preset name to the read function code it selects.
// "T3000" is the one preset the original source defines; the table also
// keeps a "T3000i" variant, grounded on the same device family switching to
// input registers (function code 4) instead of holding registers.
var presets = map[string]byte{
	"T3000":  fcReadHoldingRegisters,
	"T3000i": fcReadInputRegisters,
}

func newConfiguration() *Configuration {
	return &Configuration{readFunctionCode: fcReadHoldingRegisters}
}

// ReadFunctionCode returns the function code Poll should use for reads.
func (c *Configuration) ReadFunctionCode() byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readFunctionCode
}

func (c *Configuration) applyPreset(name string) error {
	fc, ok := presets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	c.mu.Lock()
	c.readFunctionCode = fc
	c.mu.Unlock()
	return nil
}

// loadOverlay lets a deployment override presets (or add new ones) from a
// config file and environment, the way EdgeFlow's config.Load layers a
// YAML file under env vars under hardcoded defaults. This is optional: a
// Farm that never calls it just uses the built-in preset table above.
func loadOverlay(configPath string) (map[string]byte, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FARMODBUS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("farmodbus: reading config overlay: %w", err)
	}

	var overlay struct {
		Presets map[string]int `mapstructure:"presets"`
	}
	if err := v.Unmarshal(&overlay); err != nil {
		return nil, fmt.Errorf("farmodbus: parsing config overlay: %w", err)
	}

	out := make(map[string]byte, len(overlay.Presets))
	for name, fc := range overlay.Presets {
		out[name] = byte(fc)
	}
	return out, nil
}
