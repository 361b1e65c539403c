package core

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ApplyOverlay superimposes fields onto cfg. Each present key replaces the
// whole target field (lists and maps are overwritten, not merged). Unknown
// keys are rejected.
func ApplyOverlay(cfg *AgentConfig, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		ZeroFields:       true,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create overlay decoder: %w", err)
	}

	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("apply overlay: %w", err)
	}

	return nil
}

// CheckOverlay reports whether fields could be applied to an AgentConfig
// without touching any real config.
func CheckOverlay(fields map[string]any) error {
	probe := DefaultAgentConfig("probe")
	return ApplyOverlay(&probe, fields)
}
