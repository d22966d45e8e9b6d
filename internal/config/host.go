package config

// HostConfig holds host-specific configuration for a single crawl target.
// This allows customizing crawl behavior per host without repeating CLI
// flags on every run.
type HostConfig struct {
	// Cookie is an HTTP cookie to use when crawling this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Delay overrides the global crawl delay for this host.
	// Accepts Go duration syntax such as "500ms" or "2s".
	Delay Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the global page cap for this host.
	// If zero, the global MaxPages is used.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .webcrawl configuration file.
type File struct {
	// Hosts maps hostnames to their host-specific configurations.
	// Keys are bare hostnames without scheme (e.g., "docs.example.com").
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults contains default host configuration applied to all hosts
	// unless overridden in the host-specific configuration.
	Defaults HostConfig `yaml:"defaults,omitempty"`
}

// GetHostConfig returns the configuration for a specific hostname.
// It merges the host-specific configuration with defaults.
func (cf *File) GetHostConfig(hostname string) HostConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with host-specific configuration if present
	if hostConfig, ok := cf.Hosts[hostname]; ok {
		if hostConfig.Cookie != "" {
			result.Cookie = hostConfig.Cookie
		}
		if hostConfig.Delay != 0 {
			result.Delay = hostConfig.Delay
		}
		if hostConfig.MaxPages != 0 {
			result.MaxPages = hostConfig.MaxPages
		}
		if len(hostConfig.Headers) > 0 {
			// Copy before merging so the defaults map is never mutated.
			merged := make(map[string]string, len(result.Headers)+len(hostConfig.Headers))
			for k, v := range result.Headers {
				merged[k] = v
			}
			for k, v := range hostConfig.Headers {
				merged[k] = v
			}
			result.Headers = merged
		}
		if len(hostConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = hostConfig.IgnorePatterns
		}
		if len(hostConfig.FollowPatterns) > 0 {
			result.FollowPatterns = hostConfig.FollowPatterns
		}
	}

	return result
}
