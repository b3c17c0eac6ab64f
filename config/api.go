package config

// APIConfig defines the HTTP API listener. Requests must carry
// "Bearer <token>" in the Authorization header when Token is non-empty.
type APIConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
