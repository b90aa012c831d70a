// internal/ua/ua_test.go
//
// Unit-tests for the User-Agent wrapper.

package ua

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	const chrome = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

	info := Parse(chrome)
	if !strings.Contains(info.Browser, "Chrome") {
		t.Fatalf("browser = %q", info.Browser)
	}
	if info.Device != "Desktop" {
		t.Fatalf("device = %q", info.Device)
	}
	if info.IsBot {
		t.Fatal("desktop browser flagged as bot")
	}
	if info.Raw != chrome {
		t.Fatalf("raw not preserved: %q", info.Raw)
	}

	bot := Parse("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	if !bot.IsBot {
		t.Fatal("crawler not flagged as bot")
	}
}

func TestVersionTrimsTrailingZeros(t *testing.T) {
	info := Parse("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	if info.Device != "Mobile" {
		t.Fatalf("device = %q", info.Device)
	}
	if info.OSVersion != "17" {
		t.Fatalf("os version = %q", info.OSVersion)
	}
}
