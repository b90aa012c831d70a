// internal/identity/identity.go
//
// Owner identity and the long-lived credential file.
//
// Context
// -------
// Writes to the graph are keyed by the owner's backend-native address, the
// base64url form of an Ed25519 public key.  The keypair is persisted as a
// small JSON file next to the binary; it is read at startup and generated
// exactly once when absent.  Losing the file means losing the ability to
// update previously published pages, which is why Generate never
// overwrites an existing file.
//
// The rest of the repo treats identity as a read-only fact: an Owner with
// an address and a display alias.

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Pair is the persisted signing keypair.  The JSON field names match the
// credential files written by earlier publishers.
type Pair struct {
	Pub  string `json:"pub"`
	Priv string `json:"priv"`
}

// Owner is the read-only identity fact handed to the orchestrator and
// resolver: backend address plus a human display alias.
type Owner struct {
	Address string // base64url Ed25519 public key
	Alias   string
}

// LoadOrGenerate reads the credential file at path, creating it with a
// fresh keypair when absent.  A corrupt existing file is an error, never
// silently regenerated.
func LoadOrGenerate(path string) (*Pair, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var p Pair
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("identity: parse %s: %w", path, err)
		}
		if p.Pub == "" || p.Priv == "" {
			return nil, fmt.Errorf("identity: %s is missing key material", path)
		}
		return &p, nil

	case errors.Is(err, os.ErrNotExist):
		p, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := save(path, p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
}

// Generate creates a fresh Ed25519 keypair.
func Generate() (*Pair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	return &Pair{
		Pub:  base64.RawURLEncoding.EncodeToString(pub),
		Priv: base64.RawURLEncoding.EncodeToString(priv),
	}, nil
}

// Sign signs msg with the pair's private key.  The bundled relay accepts
// unauthenticated writes and does not call this; it is kept for relays
// that verify write signatures.
func (p *Pair) Sign(msg []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(p.Priv)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return nil, errors.New("identity: corrupt private key")
	}
	return ed25519.Sign(ed25519.PrivateKey(raw), msg), nil
}

// Owner derives the read-only identity fact.  The alias falls back to a
// shortened address (first eight plus last four characters) when the
// caller has not chosen one.
func (p *Pair) Owner(alias string) Owner {
	if alias == "" {
		alias = ShortAddress(p.Pub)
	}
	return Owner{Address: p.Pub, Alias: alias}
}

// ShortAddress abbreviates a backend address for display.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + addr[len(addr)-4:]
}

// save writes the credential file with owner-only permissions.
func save(path string, p *Pair) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("identity: create %s: %w", dir, err)
		}
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("identity: write %s: %w", path, err)
	}
	return nil
}
