// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Providers (OpenAI and compatible endpoints, Anthropic, Gemini) implement the
// Model interface so higher layers stay decoupled from vendor SDKs. Generation
// is exposed as a pair of channels; Collect drains them for callers that only
// need the final response. Middleware in this package adds circuit breaking
// and client side rate limiting around any Model.
package model
