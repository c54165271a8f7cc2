package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration and returns both errors (fatal) and warnings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Redis.validate(result)
	c.Server.validate(result)
	c.Pagination.validate(result)
	c.Session.validate(result)
	c.Email.validate(result)
	c.Verification.validate(result)
	c.Observability.validate(result)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString == "" {
		if d.Host == "" {
			result.fail("database.host", "host is required", "set database.host or database.dsn")
		}
		if d.Port < 1 || d.Port > 65535 {
			result.fail("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
		}
		if d.User == "" {
			result.fail("database.user", "user is required", "")
		}
		if d.Database == "" {
			result.fail("database.database", "database name is required", "")
		}
	}

	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[d.TLS.Mode] {
		result.fail("database.tls.mode", fmt.Sprintf("invalid TLS mode %q", d.TLS.Mode),
			"valid values are: off, skip-verify, verify-ca, verify-full")
	}
	if (d.TLS.Mode == "verify-ca" || d.TLS.Mode == "verify-full") && d.TLS.CAFile == "" {
		result.fail("database.tls.ca_file", "CA file is required for verify-ca and verify-full modes", "")
	}
	if d.TLS.Mode == "skip-verify" {
		result.warn("database.tls.mode", "skip-verify mode does not verify server certificates",
			"use verify-ca or verify-full in production")
	}

	if d.ConnectionString != "" {
		if _, err := d.MySQLConfig(); err != nil {
			result.fail("database.dsn", err.Error(), "use the go-sql-driver/mysql DSN format")
		}
	}

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.warn("database.pool.max_idle", "max_idle is greater than max_open",
			"idle connections will be limited to max_open")
	}

	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail("database.connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval",
			"connection_retry_interval is greater than connection_timeout",
			"only one connection attempt will be made")
	}
}

func (r *RedisConfig) validate(result *ValidationResult) {
	if _, _, err := net.SplitHostPort(r.Addr); err != nil {
		result.fail("redis.addr", fmt.Sprintf("invalid address %q", r.Addr), "use host:port")
	}
	if r.DB < 0 {
		result.fail("redis.db", "db cannot be negative", "")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps", "rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst", "rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled", "rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit_enabled to apply rate limits")
	}

	switch s.TLSMode {
	case "", "off", "self-signed":
	case "file":
		if s.TLSCertFile == "" || s.TLSKeyFile == "" {
			result.fail("server.tls_mode", "tls_mode=file requires tls_cert_file and tls_key_file", "")
		}
	default:
		result.fail("server.tls_mode", fmt.Sprintf("unknown tls_mode %q", s.TLSMode), "use off, file or self-signed")
	}
	if s.TLSMode == "self-signed" {
		result.warn("server.tls_mode", "serving an ephemeral self-signed certificate", "use tls_mode=file outside development")
	}
}

func (p *PaginationConfig) validate(result *ValidationResult) {
	if p.DefaultPageSize < 1 {
		result.fail("pagination.default_page_size", "default_page_size must be at least 1", "")
	}
	if p.MaxPageSize < 0 {
		result.fail("pagination.max_page_size", "max_page_size cannot be negative", "use 0 to disable the cap")
	}
	if p.MaxPageSize > 0 && p.DefaultPageSize > p.MaxPageSize {
		result.fail("pagination.default_page_size", "default_page_size exceeds max_page_size", "")
	}
}

func (s *SessionConfig) validate(result *ValidationResult) {
	switch {
	case s.Secret == "":
		result.fail("session.secret", "secret is required", "set ACCTAPI_SESSION_SECRET to a random value of at least 32 bytes")
	case len(s.Secret) < 32:
		result.warn("session.secret", "secret is shorter than 32 bytes", "")
	}
	if s.TTL <= 0 {
		result.fail("session.ttl", "ttl must be greater than 0", "")
	}
	if s.CookieName == "" {
		result.fail("session.cookie_name", "cookie_name is required", "")
	}
	if !s.Secure {
		result.warn("session.secure", "session cookie is sent over plain HTTP", "enable session.secure in production")
	}
}

func (e *EmailConfig) validate(result *ValidationResult) {
	if parsed, err := url.Parse(e.APIURL); err != nil || parsed.Host == "" {
		result.fail("email.api_url", fmt.Sprintf("invalid URL %q", e.APIURL), "")
	}
	if e.SenderEmail == "" {
		result.warn("email.sender_email", "sender_email is empty", "invitations will be rejected by the provider")
	}
	if e.APIKey == "" {
		result.warn("email.api_key", "api_key is empty", "invitations cannot be delivered")
	}
}

func (v *VerificationConfig) validate(result *ValidationResult) {
	if v.TokenTTL <= 0 {
		result.fail("verification.token_ttl", "token_ttl must be greater than 0", "")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.fail("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.fail("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "trace_sample_ratio must be between 0.0 and 1.0", "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.fail(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.fail(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
