package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	apperrors "cryptorecs/internal/errors"
)

// IPAllowList rejects requests whose peer address is outside the configured
// networks. An empty list admits everyone.
type IPAllowList struct {
	prefixes     []netip.Prefix
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewIPAllowList parses entries as CIDR prefixes or single addresses
func NewIPAllowList(entries []string, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) (*IPAllowList, error) {
	al := &IPAllowList{
		errorHandler: errorHandler,
		logger:       logger,
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parseNetwork(entry)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("invalid allowed network %q", entry), err)
		}
		al.prefixes = append(al.prefixes, prefix)
	}
	return al, nil
}

func parseNetwork(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Allows reports whether remoteAddr (host:port or bare host) is admitted
func (al *IPAllowList) Allows(remoteAddr string) bool {
	if len(al.prefixes) == 0 {
		return true
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap().WithZone("")

	for _, prefix := range al.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Handler enforces the allow-list on the TCP peer address. Forwarding
// headers are not consulted.
func (al *IPAllowList) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !al.Allows(r.RemoteAddr) {
			al.logger.WarnContext(r.Context(), "address_rejected",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			al.errorHandler.HandleError(w, r, apperrors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
