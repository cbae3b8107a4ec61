// Package fingerprint builds HTTP transports whose TLS client hello matches a
// real browser. Upstream search engines fingerprint TLS, and the default Go
// handshake stands out.
package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile validates a profile name from configuration. An empty string
// defaults to chrome.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "":
		return ProfileChrome, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return Profile(s), nil
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

func (p Profile) helloID() (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedALPN, nil
	}
	return utls.ClientHelloID{}, fmt.Errorf("fingerprint: profile %q has no client hello", p)
}

// Transport returns an http.RoundTripper configured with the specified TLS
// fingerprint profile. The "go" profile returns a plain cloned
// http.Transport; the browser profiles replace DialTLSContext with a uTLS
// handshake over the standard TCP dialer.
func Transport(p Profile) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p == ProfileGo {
		return transport, nil
	}

	clientHelloID, err := p.helloID()
	if err != nil {
		return nil, err
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr // fallback if no port
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}
