package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of panel-capable devices.
	ServiceType = "_mashpanel._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the default device HTTP port.
	DefaultPort = 8080

	// DefaultAPIPath is the default API path prefix.
	DefaultAPIPath = "/api/v1"
)

// TXT record key constants.
const (
	TXTKeySerial  = "serial" // Serial number
	TXTKeyModel   = "model"  // Model name
	TXTKeyAPIPath = "api"    // API path prefix
	TXTKeyAuth    = "auth"   // Authentication scheme (optional)
)

// AuthScheme is the authentication a device expects.
type AuthScheme string

const (
	// AuthNone means requests are not authenticated.
	AuthNone AuthScheme = "none"
	// AuthBearer means requests carry a bearer token.
	AuthBearer AuthScheme = "bearer"
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInvalidAuth         = errors.New("invalid auth scheme")
	ErrInvalidInstance     = errors.New("invalid instance name")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrTXTRecordTooLarge   = errors.New("TXT record too large")
	ErrNotFound            = errors.New("device not found")
	ErrNotAdvertising      = errors.New("not advertising")
)

// DeviceInfo describes what a device advertises.
type DeviceInfo struct {
	// Instance is the DNS-SD instance name. Defaults to "<model>-<serial>".
	Instance string

	// Port is the HTTP port (default: DefaultPort).
	Port uint16

	Serial  string
	Model   string
	APIPath string
	Auth    AuthScheme
}

// InstanceName returns the configured instance name or the default
// "<model>-<serial>", truncated to the DNS label limit.
func (i *DeviceInfo) InstanceName() string {
	name := i.Instance
	if name == "" {
		name = i.Model + "-" + i.Serial
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// Service is a device found by browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Serial  string
	Model   string
	APIPath string
	Auth    AuthScheme
}

// BaseURL returns the device origin for the first known address.
func (s *Service) BaseURL() (string, error) {
	if len(s.Addresses) == 0 {
		return "", fmt.Errorf("%w: %s has no address", ErrNotFound, s.InstanceName)
	}
	return "http://" + net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port))), nil
}

// APIURL returns the base URL joined with the advertised API path.
func (s *Service) APIURL() (string, error) {
	base, err := s.BaseURL()
	if err != nil {
		return "", err
	}
	return base + s.APIPath, nil
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL overrides the record TTL. Zero keeps the library default.
	TTL time.Duration
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string

	// Timeout bounds Find when the context has no deadline
	// (default: BrowseTimeout).
	Timeout time.Duration
}
