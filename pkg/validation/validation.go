package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	// HostRegex accepts DNS names.
	HostRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*\.?$`)

	// PipelineIDRegex matches the hex BLAKE3-256 identifiers produced by the pipeline scanner.
	PipelineIDRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidateRange checks min <= value <= max (inclusive on both ends).
func ValidateRange(fieldName string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d", fieldName, min, max)
	}
	return nil
}

// ValidatePort accepts ports in (0, 65535].
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateHost checks the syntax of a remote host: an IPv4 or IPv6 literal
// or a DNS name. It does not resolve it.
func ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("address is required")
	}
	if len(host) > 253 {
		return fmt.Errorf("address is too long (max 253 characters)")
	}

	switch {
	case strings.Contains(host, ":"):
		if ip := net.ParseIP(host); ip == nil || ip.To4() != nil {
			return fmt.Errorf("invalid IPv6 address")
		}
	case looksLikeIPv4(host):
		if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid IPv4 address")
		}
	case !HostRegex.MatchString(host):
		return fmt.Errorf("invalid address format")
	}
	return nil
}

// looksLikeIPv4 reports whether host is four dot-separated digit groups.
func looksLikeIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password is too long (max %d characters)", MaxPasswordLength)
	}
	return nil
}

// ValidatePipelineID checks the identifier shape before a directory rescan.
func ValidatePipelineID(id string) error {
	if id == "" {
		return fmt.Errorf("pipeline is required")
	}
	if !PipelineIDRegex.MatchString(id) {
		return fmt.Errorf("invalid pipeline identifier")
	}
	return nil
}
