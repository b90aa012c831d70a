// internal/config/model.go
//
// Typed configuration model for the dweb publisher.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `DWEB_`-prefixed environment overrides  – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client after unmarshalling, so secrets never live in
// flat files or git history.  Today only the file-network relay token
// uses the indirection.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.  BaseDomain enables the subdomain
// shortcut: a request for alice.<base_domain> redirects to alice's site.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
	BaseDomain string `koanf:"base_domain"`
}

//
// Graph section
//

// Graph points at the graph-database relay that stores Site Records, and
// bounds the consistency wait on reads issued right after a write.
type Graph struct {
	RelayURL   string        `koanf:"relay_url" validate:"required,url"`
	WaitWindow time.Duration `koanf:"wait_window"`
}

//
// FileNet section
//

// FileNet configures the content-addressed network boundary.  RelayToken
// usually carries a `vault:` reference; the resolved plain token is what
// handlers see.  An empty RelayURL disables the upload publish mode.
type FileNet struct {
	RelayURL       string   `koanf:"relay_url"`
	RelayToken     string   `koanf:"relay_token"`
	Gateways       []string `koanf:"gateways"`
	RewriteGateway string   `koanf:"rewrite_gateway"`
}

//
// Identity section
//

// Identity locates the owner key pair on disk and names the public alias
// published to the Name Mapping subtree.
type Identity struct {
	KeysPath string `koanf:"keys_path"`
	Alias    string `koanf:"alias"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or DWEB_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // DWEB_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Graph    Graph    `koanf:"graph"`
	FileNet  FileNet  `koanf:"filenet"`
	Identity Identity `koanf:"identity"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
