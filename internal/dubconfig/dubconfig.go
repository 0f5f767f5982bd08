// Package dubconfig loads the CLI's bootstrap YAML config file (spec
// §10.2): the default AiConfig/TtsPlugin records seeded into the store on
// first run. The file's data_dir key is parsed into File.DataDir, but the
// data directory is resolved from --data-dir before this file is read, so
// that key has no effect.
package dubconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leica1994/dubverse/internal/dbstore"
)

// File is the on-disk shape of `{data_dir}/config.yaml`.
type File struct {
	DataDir    string             `yaml:"data_dir,omitempty"`
	AiConfigs  []dbstore.AiConfig `yaml:"ai_configs,omitempty"`
	TtsPlugins []dbstore.TtsPlugin `yaml:"tts_plugins,omitempty"`
}

// Load reads and parses path. A missing file is not an error — it returns
// a zero-value File, since the config file is optional bootstrap data, not
// a requirement.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse config file: %w", err)
	}
	return f, nil
}

// Bootstrap seeds store with any AiConfig/TtsPlugin rows in f that aren't
// already present (matched by ID), so re-running with the same config file
// is idempotent.
func Bootstrap(store *dbstore.Store, f File) error {
	existingAi, err := store.GetAllAiConfigs()
	if err != nil {
		return err
	}
	haveAi := make(map[string]bool, len(existingAi))
	for _, c := range existingAi {
		haveAi[c.ID] = true
	}
	for _, c := range f.AiConfigs {
		if haveAi[c.ID] {
			continue
		}
		cfg := c
		if err := store.CreateAiConfig(&cfg); err != nil {
			return fmt.Errorf("bootstrap ai config %q: %w", c.ID, err)
		}
	}

	existingTts, err := store.GetAllTtsPlugins()
	if err != nil {
		return err
	}
	haveTts := make(map[string]bool, len(existingTts))
	for _, p := range existingTts {
		haveTts[p.ID] = true
	}
	for _, p := range f.TtsPlugins {
		if haveTts[p.ID] {
			continue
		}
		plugin := p
		if err := store.CreateTtsPlugin(&plugin); err != nil {
			return fmt.Errorf("bootstrap tts plugin %q: %w", p.ID, err)
		}
	}
	return nil
}
