// Package ipanon anonymizes client IP addresses recorded elsewhere in the
// pipeline (notably modules/commonlog), zeroing the last octet of an IPv4
// (or IPv4-mapped IPv6) address and the last twelve octets of any other
// IPv6 address, matching the precision the original ip-anonymization
// module offers: enough to keep coarse geolocation useful while dropping
// the bits that identify one specific client.
package ipanon

import "net"

// Anonymize returns a copy of ip with its host-identifying bits zeroed.
// It returns the input unchanged if ip is nil or not 4/16 bytes.
func Anonymize(ip net.IP) net.IP {
	if ip == nil {
		return ip
	}
	if v4 := ip.To4(); v4 != nil {
		out := make(net.IP, len(v4))
		copy(out, v4)
		out[len(out)-1] = 0
		return out
	}
	if v6 := ip.To16(); v6 != nil {
		out := make(net.IP, len(v6))
		copy(out, v6)
		for i := len(out) - 12; i < len(out); i++ {
			out[i] = 0
		}
		return out
	}
	return ip
}

// AnonymizeString parses s as an IP address, anonymizes it, and returns
// its string form. If s does not parse as an IP, it is returned unchanged
// (used for request log fields where the source may already be a hostname
// behind a trusted proxy header).
func AnonymizeString(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return s
	}
	return Anonymize(ip).String()
}
