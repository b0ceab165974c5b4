package connectivity

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

// InterfaceLister returns the host's network interfaces.
type InterfaceLister func() ([]net.Interface, error)

// HostProber combines an interface scan (internet capability) with an HTTP
// request to a known endpoint (validation).
type HostProber struct {
	interfaces InterfaceLister
	client     *resty.Client
	url        string
}

// NewHostProber builds a prober validating against url. An empty url skips
// validation and trusts the interface scan.
func NewHostProber(url string, timeout time.Duration) *HostProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HostProber{
		interfaces: net.Interfaces,
		client:     resty.New().SetTimeout(timeout),
		url:        url,
	}
}

// WithInterfaces replaces the interface source.
func (p *HostProber) WithInterfaces(list InterfaceLister) *HostProber {
	p.interfaces = list
	return p
}

// Probe implements Prober.
func (p *HostProber) Probe(ctx context.Context) (Capabilities, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return Capabilities{}, fmt.Errorf("list interfaces: %w", err)
	}
	caps := Capabilities{Internet: hasRoutableInterface(ifaces)}
	if !caps.Internet {
		return caps, nil
	}
	if p.url == "" {
		caps.Validated = true
		return caps, nil
	}

	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return caps, fmt.Errorf("validate %s: %w", p.url, err)
	}
	caps.Validated = !resp.IsError()
	return caps, nil
}

func hasRoutableInterface(ifaces []net.Interface) bool {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return true
	}
	return false
}
