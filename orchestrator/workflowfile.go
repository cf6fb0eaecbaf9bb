package orchestrator

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadWorkflow reads and parses a Workflow definition from a TOML file
// (§6: `[[agents]]` tables plus top-level `[variables]` and `model`).
// Grounded on internal/config/config.go's Default()->toml.Unmarshal pattern,
// generalized from a single bot-config file to the Workflow-definition file.
func LoadWorkflow(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("orchestrator: read workflow %s: %w", path, err)
	}
	var wf Workflow
	if _, err := toml.Decode(string(data), &wf); err != nil {
		return Workflow{}, fmt.Errorf("orchestrator: parse workflow %s: %w", path, err)
	}
	return wf, nil
}

// WriteWorkflow serializes wf as TOML to path.
func WriteWorkflow(path string, wf Workflow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("orchestrator: create workflow file %s: %w", path, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(wf); err != nil {
		return fmt.Errorf("orchestrator: encode workflow %s: %w", path, err)
	}
	return nil
}
