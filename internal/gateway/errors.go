package gateway

import "fmt"

// ConfigError reports a missing setting, detected before any network call.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gateway config: %s is not set", e.Field)
}

// ProtocolError is a non-2xx answer from the gateway.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway %s failed: status %d: %s", e.Op, e.Status, e.Body)
}
