// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network failures into operator-friendly terminal
// messages for the CLI commands that talk to a sqlgate server or database.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Class is the detected cause of a network error.
type Class int

const (
	Generic Class = iota
	Timeout
	DNS
	ConnectionRefused
	TLS
	Server
)

// FormatNetworkError prints a troubleshooting message for err and returns it
// wrapped. action describes what was being attempted ("querying localhost:8080").
func FormatNetworkError(err error, action string) error {
	if err == nil {
		return nil
	}
	displayErrorMessage(err, action)
	return fmt.Errorf("network error: %w", err)
}

// Classify reports the most specific class that matches err.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Generic
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return ConnectionRefused
	case isSSLError(err):
		return TLS
	case isServerError(err.Error()):
		return Server
	}
	return Generic
}

func displayErrorMessage(err error, action string) {
	switch Classify(err) {
	case Timeout:
		showTimeoutError(action)
	case DNS:
		showDNSError(action)
	case ConnectionRefused:
		showConnectionRefusedError(action)
	case TLS:
		showSSLError(action)
	case Server:
		showServerError(action)
	default:
		showGenericError(action, err.Error())
	}
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError checks for 5xx answers surfaced as error text.
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{"500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func showTimeoutError(action string) {
	pterm.Printf("⏱️  Timed out while %s\n", action)
	pterm.Println()
	pterm.Println("The server took too long to respond. This could mean:")
	pterm.Println("  • The query is slow (the server applies QUERY_TIMEOUT)")
	pterm.Println("  • The database is under heavy load")
	pterm.Println("  • A firewall is dropping the connection")
	pterm.Println()
}

func showDNSError(action string) {
	pterm.Printf("🌐 Cannot resolve host while %s\n", action)
	pterm.Println()
	pterm.Println("Check the host name in --server or DATABASE_URL / DB_HOST.")
	pterm.Println()
}

func showConnectionRefusedError(action string) {
	pterm.Printf("🚫 Connection refused while %s\n", action)
	pterm.Println()
	pterm.Println("Nothing is accepting connections at that address. Check that:")
	pterm.Println("  • 'sqlgate serve' is running (for the API)")
	pterm.Println("  • PostgreSQL is running and reachable (for the database)")
	pterm.Println("  • The port is correct")
	pterm.Println()
}

func showSSLError(action string) {
	pterm.Printf("🔒 Secure connection failed while %s\n", action)
	pterm.Println()
	pterm.Println("Cannot establish a TLS connection. Try:")
	pterm.Println("  • DB_SSLMODE=disable for a local database without TLS")
	pterm.Println("  • Checking the server certificate and system clock")
	pterm.Println()
}

func showServerError(action string) {
	pterm.Printf("⚠️  Server error while %s\n", action)
	pterm.Println()
	pterm.Println("The sqlgate server failed to process the request.")
	pterm.Println("Details are in the server log under the response's request_id.")
	pterm.Println()
}

func showGenericError(action string, details string) {
	pterm.Printf("❌ Request failed while %s\n", action)
	pterm.Println()
	if details != "" {
		if len(details) > 100 {
			details = details[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", details)
		pterm.Println()
	}
}

// ExtractHostFromURL extracts the host from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
