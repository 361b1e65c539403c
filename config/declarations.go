package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/tool"
)

// Declarations is the content of a declaration file.
//
//	capabilities:
//	  fast: gpt-5-mini
//	experiments:
//	  writer:
//	    writer_a: 0.5
//	    writer_b: 0.5
//	agents:
//	  - name: writer_a
//	    system_prompt: You write short texts.
//	    capability: fast
//	tool_tags:
//	  search: [web]
//	mcp_servers:
//	  - name: files
//	    command: npx
//	    args: ["-y", "@modelcontextprotocol/server-filesystem", "."]
//
// Agent entries may be partial. Missing fields take the defaults.
type Declarations struct {
	Capabilities map[string]string             `yaml:"capabilities"`
	Experiments  map[string]map[string]float64 `yaml:"experiments"`
	Agents       []map[string]any              `yaml:"agents"`
	ToolTags     map[string][]string           `yaml:"tool_tags"`
	MCPServers   []tool.MCPServer              `yaml:"mcp_servers"`
}

// LoadFile reads and parses a declaration file. ${VAR} references are
// expanded from the environment before parsing.
func LoadFile(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses declaration YAML.
func Parse(data []byte) (*Declarations, error) {
	var d Declarations
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &d); err != nil {
		return nil, fmt.Errorf("failed to parse declarations: %w", err)
	}

	return &d, nil
}

// AgentConfigs decodes the agent entries in file order.
func (d *Declarations) AgentConfigs() ([]core.AgentConfig, error) {
	out := make([]core.AgentConfig, 0, len(d.Agents))

	for i, fields := range d.Agents {
		name, _ := fields["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("agents[%d]: name is required", i)
		}

		cfg, err := configFromFields(name, fields)
		if err != nil {
			return nil, fmt.Errorf("agents[%d]: %w", i, err)
		}

		out = append(out, cfg)
	}

	return out, nil
}

// ExperimentNames returns the declared experiment names in sorted order.
func (d *Declarations) ExperimentNames() []string {
	names := make([]string, 0, len(d.Experiments))
	for name := range d.Experiments {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
