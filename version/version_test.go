package version

import (
	"strings"
	"testing"
)

func TestGet_Defaults(t *testing.T) {
	info := Get()
	if info.Version != "dev" {
		t.Errorf("version = %s, want dev", info.Version)
	}
}

func TestShort(t *testing.T) {
	if got := Short(); !strings.HasPrefix(got, "dev") {
		t.Errorf("short version = %q, want dev prefix", got)
	}
}
