package identity

import (
	"os"
	"strings"
)

// Provider reads the device identity token provisioned over BLE. The core
// never writes the file; when it is missing or unreadable the fixed
// fallback token is used so the pipeline can keep running unprovisioned.
type Provider struct {
	path     string
	fallback string
}

func NewProvider(path, fallback string) *Provider {
	return &Provider{path: path, fallback: fallback}
}

// DeviceID returns the trimmed token from the identity file, or the
// fallback when the file cannot be read. Reads the file on every call so
// a re-provisioned id takes effect without a restart.
func (p *Provider) DeviceID() string {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p.fallback
	}
	return strings.TrimSpace(string(data))
}
