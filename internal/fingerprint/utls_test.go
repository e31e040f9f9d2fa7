package fingerprint

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransport_GoProfile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rt, err := Transport(ProfileGo, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := &http.Client{Transport: rt}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTransport_UTLSProfiles(t *testing.T) {
	// httptest TLS servers use self-signed certs, so verification is skipped.
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	profiles := []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileEdge, ProfileRandom}
	for _, p := range profiles {
		t.Run(string(p), func(t *testing.T) {
			rt, err := Transport(p, Options{InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			client := &http.Client{Transport: rt}
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d for profile %s", resp.StatusCode, p)
			}
		})
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("netscape"), Options{})
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
}

func TestPick_Deterministic(t *testing.T) {
	first := Pick(nil, rand.New(rand.NewSource(11)))
	second := Pick(nil, rand.New(rand.NewSource(11)))
	if first != second {
		t.Errorf("same seed should pick the same profile, got %s and %s", first, second)
	}

	found := false
	for _, p := range DefaultProfiles {
		if p == first {
			found = true
		}
	}
	if !found {
		t.Errorf("picked profile %s not in default pool", first)
	}
}

func TestPick_CustomPool(t *testing.T) {
	pool := []Profile{ProfileFirefox}
	if got := Pick(pool, rand.New(rand.NewSource(1))); got != ProfileFirefox {
		t.Errorf("expected firefox from single-entry pool, got %s", got)
	}
}
