// Package privacy provides utilities for handling personally identifiable
// information in logs and audit events.
package privacy

import (
	"fmt"
	"net"
)

// AnonymizeIP truncates an IP address to remove the host-identifying portion
// before it is logged.
//
// For IPv4 addresses, the last octet is zeroed (e.g., "192.168.1.47" ->
// "192.168.1.0"), effectively masking to a /24 network. For IPv6 addresses,
// everything past the /48 prefix is zeroed.
//
// Returns "invalid" for unparseable IP addresses, and "unknown" for empty strings.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	// IPv6: keep only the first 6 bytes (/48 prefix)
	masked := make(net.IP, net.IPv6len)
	copy(masked, parsed.To16()[:6])
	return masked.String()
}
