package netutil

import (
	"net"
	"strings"
)

// cgnat is 100.64.0.0/10, used by Cloudflare WARP, Tailscale and carrier NATs.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

// vpnNameHints are interface name fragments of tunnels and virtual adapters.
var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// Interface is the part of a network interface ShouldForceRelay looks at.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	IPs      []net.IP
}

// ShouldForceRelay reports whether this host is likely behind a VPN or CGNAT,
// where direct peer-to-peer connections tend to fail and TURN should be forced.
func ShouldForceRelay() bool {
	ifaces, err := Interfaces()
	if err != nil {
		return false
	}
	return behindTunnel(ifaces)
}

// Interfaces lists the host's network interfaces with their addresses.
func Interfaces() ([]Interface, error) {
	sys, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(sys))
	for _, iface := range sys {
		entry := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					entry.IPs = append(entry.IPs, v.IP)
				case *net.IPAddr:
					entry.IPs = append(entry.IPs, v.IP)
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func behindTunnel(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range vpnNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, ip := range iface.IPs {
			if cgnat.Contains(ip) {
				return true
			}
		}
	}
	return false
}
