package middleware

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	rxTenant = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	uploadExt = map[string]bool{
		".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
		".bmp": true, ".tif": true, ".tiff": true, ".gif": true,
	}
)

// ValidateURL validates URLs before the proxy fetches them
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	// Parse URL
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	// Check scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("credentials in URL are not allowed")
	}

	// Check for localhost/internal hosts (SSRF protection)
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return fmt.Errorf("URL host cannot be empty")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("localhost/internal hosts are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := CheckIP(ip); err != nil {
			return err
		}
	}

	return nil
}

// carrier-grade NAT, RFC 6598
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

// CheckIP rejects addresses the proxy must never connect to. It runs on
// literal hosts in ValidateURL and again on every resolved address at dial
// time, so DNS names pointing inward are caught too.
func CheckIP(ip net.IP) error {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("localhost/internal IPs are not allowed")
	}
	if ip.IsPrivate() || cgnat.Contains(ip) {
		return fmt.Errorf("private IP ranges are not allowed")
	}
	return nil
}

// ValidateUpload checks one uploaded file by name and size
func ValidateUpload(name string, size, maxBytes int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if size == 0 {
		return fmt.Errorf("%s is empty", name)
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%s exceeds the %d MB limit", name, maxBytes>>20)
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && !uploadExt[ext] {
		return fmt.Errorf("%s: unsupported file type %s (PDF or image only)", name, ext)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}

	// Allow alphanumeric, dash, underscore (max 64 chars)
	if !rxTenant.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}

	return nil
}
