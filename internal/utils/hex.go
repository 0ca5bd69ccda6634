package utils

import "strings"

// BytesToHex converts a byte slice to an upper-case hexadecimal string
func BytesToHex(b []byte) string {
	const hexd = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, hexd[x>>4], hexd[x&0x0F])
	}
	return string(out)
}

// MACKey turns "AA:BB:CC:DD:EE:FF" into "aabbccddeeff" for topic segments and
// map keys.
func MACKey(addr string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(addr), ":", ""))
}
