package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config is built once at process start and passed by reference. The
// per-source conflict filters replace what used to be mutable framework
// configuration: paths listed here never surface as merge conflicts for that
// source, the update side simply wins.
type Config struct {
	Addr        string
	DatabaseURL string

	KafkaBrokers []string
	AuditTopic   string

	// BaseURL is the public base for record URLs attached to resumed
	// workflows; CallbackBaseURL is where resolution callbacks point back to.
	BaseURL         string
	CallbackBaseURL string

	ConflictFilters map[string][]string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() *Config {
	addr := os.Getenv("BIBFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	baseURL := os.Getenv("BIBFLOW_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	callbackBase := os.Getenv("BIBFLOW_CALLBACK_BASE_URL")
	if callbackBase == "" {
		callbackBase = baseURL
	}

	var brokers []string
	if raw := os.Getenv("BIBFLOW_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("BIBFLOW_AUDIT_TOPIC")
	if topic == "" {
		topic = "bibflow.audit"
	}

	return &Config{
		Addr:            addr,
		DatabaseURL:     os.Getenv("BIBFLOW_DATABASE_URL"),
		KafkaBrokers:    brokers,
		AuditTopic:      topic,
		BaseURL:         EnsureScheme(baseURL),
		CallbackBaseURL: EnsureScheme(callbackBase),
		ConflictFilters: defaultConflictFilters(),
	}
}

func defaultConflictFilters() map[string][]string {
	return map[string][]string{
		"arxiv":     {"acquisition_source.source"},
		"submitter": {"acquisition_source.source"},
		"publisher": {"acquisition_source.source"},
	}
}

// FiltersFor returns the conflict filter paths for a source, empty for
// unknown sources so every change conflicts rather than silently merging.
func (c *Config) FiltersFor(source string) []string {
	return c.ConflictFilters[strings.ToLower(source)]
}

// RecordURL is the public URL of a record, attached to resumed workflows.
func (c *Config) RecordURL(recid int64) string {
	return joinURL(c.BaseURL, "record", strconv.FormatInt(recid, 10))
}

// ResolveValidationURL is where a halted workflow's validation errors are
// resolved.
func (c *Config) ResolveValidationURL() string {
	return joinURL(c.CallbackBaseURL, "callback", "resolve-validation")
}

// ResolveMergeConflictsURL is where a halted workflow's merge conflicts are
// resolved.
func (c *Config) ResolveMergeConflictsURL() string {
	return joinURL(c.CallbackBaseURL, "callback", "resolve-merge-conflicts")
}

// EnsureScheme defaults bare host[:port] values to http so generated URLs are
// always absolute.
func EnsureScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

func joinURL(base string, parts ...string) string {
	joined, err := url.JoinPath(base, parts...)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
	}
	return joined
}
