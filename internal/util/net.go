package util

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

func buildURL(scheme, host string, port int, basePath string) string {
	u := &url.URL{Scheme: scheme, Host: net.JoinHostPort(host, fmt.Sprint(port)), Path: basePath}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// DiscoverURLs lists the addresses a browser can open the desk at: loopback
// names first, then the bind address or every LAN IPv4 address.
func DiscoverURLs(bind string, port int, https bool, basePath string) []string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	hosts := []string{"127.0.0.1", "localhost"}
	if bind != "" && bind != "0.0.0.0" && bind != "::" {
		hosts = append(hosts, bind)
	} else {
		hosts = append(hosts, lanIPv4s()...)
	}

	seen := map[string]struct{}{}
	urls := make([]string, 0, len(hosts))
	for _, h := range hosts {
		u := buildURL(scheme, h, port, basePath)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

func lanIPv4s() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, _, err := net.ParseCIDR(a.String())
			if err != nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				out = append(out, v4.String())
			}
		}
	}
	return out
}

// RemoteIP is the first X-Forwarded-For hop, or the peer address.
func RemoteIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
