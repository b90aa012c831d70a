// internal/identity/identity_test.go

package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrGenerateCreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	first, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	if first.Pub == "" || first.Priv == "" {
		t.Fatal("generated pair is missing key material")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("file mode = %v, want 0600", info.Mode().Perm())
	}

	// Second call must load the same pair, never regenerate.
	second, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("second LoadOrGenerate: %v", err)
	}
	if second.Pub != first.Pub || second.Priv != first.Priv {
		t.Fatal("keypair changed between loads")
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	if _, err := LoadOrGenerate(path); err == nil {
		t.Fatal("corrupt credential file did not error")
	}
}

func TestSignRoundTrip(t *testing.T) {
	p, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sig, err := p.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) == 0 {
		t.Fatal("empty signature")
	}
}

func TestOwnerAliasFallback(t *testing.T) {
	p, _ := Generate()

	named := p.Owner("alice")
	if named.Alias != "alice" || named.Address != p.Pub {
		t.Fatalf("Owner = %+v", named)
	}

	anon := p.Owner("")
	if anon.Alias == "" || anon.Alias == p.Pub {
		t.Fatalf("anonymous alias = %q, want shortened address", anon.Alias)
	}
	if anon.Alias != p.Pub[:8]+p.Pub[len(p.Pub)-4:] {
		t.Fatalf("alias = %q, not first-8+last-4 form", anon.Alias)
	}
}
