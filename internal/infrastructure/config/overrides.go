package config

import "webmcp-agent/internal/application/port/output"

const (
	EnvModel           = "WEBMCP_MODEL"
	EnvAPIKey          = "OPENROUTER_API_KEY"
	EnvProvider        = "WEBMCP_PROVIDER"
	EnvHeadless        = "WEBMCP_HEADLESS"
	EnvDeferredTimeout = "WEBMCP_DEFERRED_TIMEOUT"
	EnvTraceDB         = "WEBMCP_TRACE_DB"
	EnvHTTPAddr        = "WEBMCP_HTTP_ADDR"
	EnvLogLevel        = "WEBMCP_LOG_LEVEL"
)

// ApplyEnv lets environment variables win over file values.
func (c *Config) ApplyEnv(env output.ConfigPort) error {
	c.Model.Name = env.GetWithDefault(EnvModel, c.Model.Name)
	c.Model.APIKey = env.GetWithDefault(EnvAPIKey, c.Model.APIKey)
	c.Model.Provider = env.GetWithDefault(EnvProvider, c.Model.Provider)
	c.Storage.TraceDB = env.GetWithDefault(EnvTraceDB, c.Storage.TraceDB)
	c.HTTP.Addr = env.GetWithDefault(EnvHTTPAddr, c.HTTP.Addr)
	c.Log.Level = env.GetWithDefault(EnvLogLevel, c.Log.Level)

	c.Browser.Headless = env.GetBool(EnvHeadless, c.Browser.Headless)
	c.Bridge.DeferredTimeout = env.GetDuration(EnvDeferredTimeout, c.Bridge.DeferredTimeout)

	return c.Validate()
}
