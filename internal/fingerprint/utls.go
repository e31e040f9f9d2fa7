package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileEdge    Profile = "edge"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// DefaultProfiles is the pool a client picks its identity from when none is
// configured. The identity is chosen once per client instance and held for
// its lifetime; rotating fingerprints per request is itself a signal.
var DefaultProfiles = []Profile{
	ProfileChrome,
	ProfileFirefox,
	ProfileSafari,
	ProfileEdge,
}

// Pick selects one profile from the pool using the supplied random source.
// An empty pool falls back to DefaultProfiles; a nil source falls back to
// the shared math/rand state.
func Pick(pool []Profile, rnd *rand.Rand) Profile {
	if len(pool) == 0 {
		pool = DefaultProfiles
	}
	if rnd == nil {
		return pool[rand.Intn(len(pool))]
	}
	return pool[rnd.Intn(len(pool))]
}

// Options tunes the transport returned by Transport.
type Options struct {
	// Proxy configures the underlying transport's proxy selection.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate verification. Pass-through
	// from the caller's TLS verification flag; off by default.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper that presents the given TLS
// fingerprint. The "go" profile returns a plain http.Transport; everything
// else wraps the dialer with a uTLS ClientHello impersonation.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = opts.Proxy
	}

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			if transport.TLSClientConfig == nil {
				transport.TLSClientConfig = &tls.Config{}
			}
			transport.TLSClientConfig.InsecureSkipVerify = true
		}
		return transport, nil
	}

	clientHelloID, err := helloID(p)
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
			host = addr // no port in addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileEdge:
		return utls.HelloEdge_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedALPN, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
}
