package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/internal/util"
)

// BuildMessages renders the system and user messages of cfg against args.
//
// A system prompt that cannot be rendered is sent verbatim. A user template
// that cannot be rendered is replaced by the argument values joined with
// single spaces, taken in the given order followed by the remaining keys in
// sorted order. Rendering never fails.
func BuildMessages(cfg core.AgentConfig, args map[string]any, order ...string) []core.Message {
	messages := make([]core.Message, 0, 2)

	if cfg.SystemPrompt != "" {
		content, err := util.Format(cfg.SystemPrompt, args)
		if err != nil {
			content = cfg.SystemPrompt
		}

		messages = append(messages, core.Message{Role: core.RoleSystem, Content: content})
	}

	user := joinValues(args, order)

	if cfg.UserPromptTemplate != "" {
		if content, err := util.Format(cfg.UserPromptTemplate, args); err == nil {
			user = content
		}
	}

	return append(messages, core.Message{Role: core.RoleUser, Content: user})
}

func joinValues(args map[string]any, order []string) string {
	keys := orderedKeys(args, order)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, fmt.Sprint(args[k]))
	}

	return strings.Join(values, " ")
}

func orderedKeys(args map[string]any, order []string) []string {
	keys := make([]string, 0, len(args))

	for _, k := range order {
		if _, ok := args[k]; ok && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	rest := make([]string, 0, len(args))

	for k := range args {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}

	slices.Sort(rest)

	return append(keys, rest...)
}
