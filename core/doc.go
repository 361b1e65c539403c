// Package core provides the foundational domain types shared by every layer of
// AgentForge. It defines:
//
//   - AgentConfig (the canonical declaration of one agent) and its defaults
//   - Capability labels and execution strategies
//   - Interface / Method declarations describing a declared agent's shape
//   - Role based Content with a closed set of Part types used by model adapters
//   - The error taxonomy (disabled agents, missing configuration, provider
//     problems, unknown workflow types, sync-in-async misuse)
//
// The package intentionally keeps orchestration, persistence and provider
// concerns out of scope so that every other package can depend on it without
// import cycles.
package core
