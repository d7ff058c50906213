package config

// APIConfig configures the HTTP server of the serve command.
type APIConfig struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

// SetDefaults applies fallback values for optional fields.
func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
