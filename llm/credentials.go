package llm

import (
	"maps"
	"os"
)

// Well-known credential keys. Profiles use their own names as keys.
const (
	KeyOpenAI    = "openai"
	KeyAzure     = "azure"
	KeyGoogle    = "google"
	KeyAnthropic = "anthropic"
	KeyDeepSeek  = "deepseek"
	KeyQwen      = "qwen"
)

// Credentials holds API keys and base URL overrides keyed by provider or by
// profile name.
type Credentials struct {
	APIKeys  map[string]string `yaml:"api_keys" mapstructure:"api_keys"`
	BaseURLs map[string]string `yaml:"base_urls" mapstructure:"base_urls"`
}

// NewCredentials returns empty credentials.
func NewCredentials() Credentials {
	return Credentials{APIKeys: map[string]string{}, BaseURLs: map[string]string{}}
}

var envKeys = map[string][]string{
	KeyOpenAI:    {"OPENAI_API_KEY"},
	KeyAzure:     {"AZURE_OPENAI_API_KEY"},
	KeyGoogle:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	KeyAnthropic: {"ANTHROPIC_API_KEY"},
	KeyDeepSeek:  {"DEEPSEEK_API_KEY"},
	KeyQwen:      {"DASHSCOPE_API_KEY"},
}

var envBaseURLs = map[string]string{
	KeyOpenAI:    "OPENAI_BASE_URL",
	KeyAzure:     "AZURE_OPENAI_ENDPOINT",
	KeyAnthropic: "ANTHROPIC_BASE_URL",
	KeyDeepSeek:  "DEEPSEEK_BASE_URL",
	KeyQwen:      "DASHSCOPE_BASE_URL",
}

// CredentialsFromEnv reads the standard provider environment variables.
func CredentialsFromEnv() Credentials {
	return credentialsFrom(os.Getenv)
}

func credentialsFrom(getenv func(string) string) Credentials {
	c := NewCredentials()

	for key, vars := range envKeys {
		for _, v := range vars {
			if val := getenv(v); val != "" {
				c.APIKeys[key] = val
				break
			}
		}
	}

	for key, v := range envBaseURLs {
		if val := getenv(v); val != "" {
			c.BaseURLs[key] = val
		}
	}

	return c
}

// Merge returns c overlaid with other. Values in other win.
func (c Credentials) Merge(other Credentials) Credentials {
	out := Credentials{APIKeys: maps.Clone(c.APIKeys), BaseURLs: maps.Clone(c.BaseURLs)}
	if out.APIKeys == nil {
		out.APIKeys = map[string]string{}
	}

	if out.BaseURLs == nil {
		out.BaseURLs = map[string]string{}
	}

	maps.Copy(out.APIKeys, other.APIKeys)
	maps.Copy(out.BaseURLs, other.BaseURLs)

	return out
}

// APIKey returns the key for profile when set, otherwise the provider key.
func (c Credentials) APIKey(provider, profile string) string {
	if profile != "" {
		if k, ok := c.APIKeys[profile]; ok {
			return k
		}
	}

	return c.APIKeys[provider]
}

// BaseURL returns the profile URL, then the provider URL, then def.
func (c Credentials) BaseURL(provider, def, profile string) string {
	if profile != "" {
		if u, ok := c.BaseURLs[profile]; ok {
			return u
		}
	}

	if u, ok := c.BaseURLs[provider]; ok {
		return u
	}

	return def
}
