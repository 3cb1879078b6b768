package cli

import "testing"

func TestValidateSeedURLAcceptsHTTPAndHTTPS(t *testing.T) {
	for _, u := range []string{"http://example.com", "https://example.com/path?q=1"} {
		if err := validateSeedURL(u); err != nil {
			t.Fatalf("expected %q to be valid, got %v", u, err)
		}
	}
}

func TestValidateSeedURLRejectsUnsupportedScheme(t *testing.T) {
	if err := validateSeedURL("ftp://example.com"); err == nil {
		t.Fatal("expected an error for a non-http(s) scheme")
	}
}

func TestValidateSeedURLRejectsMissingHost(t *testing.T) {
	if err := validateSeedURL("http://"); err == nil {
		t.Fatal("expected an error for a missing host")
	}
}

func TestValidateSeedURLRejectsGarbage(t *testing.T) {
	if err := validateSeedURL("not a url at all"); err == nil {
		t.Fatal("expected an error for an unparseable URL")
	}
}
