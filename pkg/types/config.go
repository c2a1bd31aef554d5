package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "biolint/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RegistryConfig holds settings for the bio.tools registry client.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`
}

// LinkConfig holds settings for the link checker.
type LinkConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRedirects bounds the redirect chain before the fetch is
	// classified as excessive (default 10).
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects"`

	// CacheSize bounds the number of URLs whose results are cached
	// (default 65536).
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// OntologyConfig holds settings for the EDAM data loader.
type OntologyConfig struct {
	HTTPConfig `yaml:",inline"`

	// DataDir is where downloaded ontology files are kept (default ".").
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// TermTableURL is the flat term table (CSV).
	TermTableURL string `json:"term_table_url" yaml:"term_table_url"`

	// RelationTableURL is the relation triple table (CSV).
	RelationTableURL string `json:"relation_table_url" yaml:"relation_table_url"`
}

// ConverterConfig holds settings for the NCBI identifier converter client.
type ConverterConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is sent with every idconv request as required by NCBI usage
	// policy.
	Email string `json:"email" yaml:"email"`

	// APIKey raises the NCBI rate quota when present.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// RequestsPerSecond caps the outbound request rate (default 3, the
	// NCBI quota without an API key).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the token bucket depth (default 3).
	Burst int `json:"burst" yaml:"burst"`

	// CacheSize bounds the number of resolved identifiers kept in
	// memory (default 16384).
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// EngineConfig holds settings for the lint engine.
type EngineConfig struct {
	// Workers bounds how many records are linted simultaneously
	// (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// StoreConfig holds settings for the message store.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// LintConfig groups all component configurations.
type LintConfig struct {
	Registry  RegistryConfig  `json:"registry" yaml:"registry"`
	Link      LinkConfig      `json:"link" yaml:"link"`
	Ontology  OntologyConfig  `json:"ontology" yaml:"ontology"`
	Converter ConverterConfig `json:"converter" yaml:"converter"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}
