// Package clientinfo derives best-effort client origin and device labels from
// an inbound request. The data is audit/display material only and carries no
// authorization weight, so extraction never fails.
package clientinfo

import (
	"net"
	"net/http"
	"strings"

	"github.com/mileusna/useragent"
)

// UnknownLabel is used when the user-agent gives no usable value.
const UnknownLabel = "Other"

// Info holds the client details recorded alongside an issued session.
type Info struct {
	IPAddress string
	Device    string
	Browser   string
	OS        string
	UserAgent string
}

// Extract resolves the client IP (first X-Forwarded-For entry, else the
// transport peer address, else empty) and parses the user-agent header into
// device/browser/OS labels, defaulting to UnknownLabel when unparseable.
func Extract(r *http.Request) Info {
	info := Info{
		Device:  UnknownLabel,
		Browser: UnknownLabel,
		OS:      UnknownLabel,
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		info.IPAddress = first
	} else if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			info.IPAddress = host
		} else {
			info.IPAddress = r.RemoteAddr
		}
	}

	info.UserAgent = r.Header.Get("User-Agent")
	if info.UserAgent != "" {
		ua := useragent.Parse(info.UserAgent)
		if ua.Name != "" {
			info.Browser = ua.Name
		}
		if ua.OS != "" {
			info.OS = ua.OS
		}
		if ua.Device != "" {
			info.Device = ua.Device
		} else if ua.Desktop {
			info.Device = "Desktop"
		}
	}
	return info
}
