package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
	"gopkg.in/yaml.v2"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/utils"
)

// LoadModelDefaults overlays the file at path onto calc.DefaultModel. Keys
// missing from the file keep their built-in values; a missing file is not an
// error. The format follows the extension (.yaml, .yml or .toml).
func LoadModelDefaults(path string) (calc.Defaults, error) {
	d := calc.DefaultModel()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("[CONFIG] no model defaults file, using built-in defaults")
			return d, nil
		}
		return d, fmt.Errorf("read model defaults: %w", err)
	}

	if err := DecodeModelDefaults(filepath.Ext(path), data, &d); err != nil {
		return d, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := utils.ValidateStruct(d); err != nil {
		return d, fmt.Errorf("model defaults %s: %w", path, err)
	}
	log.Info().Str("path", path).Float64("wacc", d.WACC).Float64("terminal", d.GrowthTerminal).Msg("[CONFIG] model defaults loaded")
	return d, nil
}

// DecodeModelDefaults decodes data in the format named by ext into d.
func DecodeModelDefaults(ext string, data []byte, d *calc.Defaults) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return yaml.Unmarshal(data, d)
	case "toml":
		return toml.Unmarshal(data, d)
	default:
		return fmt.Errorf("unsupported model defaults format %q", ext)
	}
}
