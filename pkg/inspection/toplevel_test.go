package inspection

import (
	"strings"
	"testing"

	"github.com/l3aro/go-depfinder/pkg/types"
)

func TestTopLevelName(t *testing.T) {
	namespaces := types.NewSet("google.cloud.storage", "ruamel.yaml")
	builtins := types.NewSet("os", "xml.etree")

	tests := []struct {
		name     string
		custom   []string
		expected string
	}{
		{"this.that.something", nil, "this"},
		{"foo", nil, "foo"},
		{"google.cloud.storage.something", nil, "google.cloud.storage"},
		{"google.cloud.storage", nil, "google.cloud.storage"},
		{"google.cloud.bigquery", nil, "google"},
		{"ruamel.yaml.comments", nil, "ruamel.yaml"},
		{"os.path", nil, "os"},
		{"xml.etree.ElementTree", nil, "xml.etree"},
		{"acme.core.io", []string{"acme.core"}, "acme.core"},
		{"acme.core.io", []string{"acme.*"}, "acme.core"},
		{"acme", []string{"acme.*"}, "acme"},
		{"other.core.io", []string{"acme.*"}, "other"},
	}

	for _, tt := range tests {
		got := TopLevelName(tt.name, namespaces, builtins, tt.custom)
		if got != tt.expected {
			t.Errorf("TopLevelName(%q, custom=%v) = %q, want %q", tt.name, tt.custom, got, tt.expected)
		}
		if !strings.HasPrefix(tt.name, got) {
			t.Errorf("TopLevelName(%q) = %q is not a prefix", tt.name, got)
		}
	}
}

func TestTopLevelNameNilSets(t *testing.T) {
	if got := TopLevelName("a.b.c", nil, nil, nil); got != "a" {
		t.Errorf("got %q, want %q", got, "a")
	}
}
