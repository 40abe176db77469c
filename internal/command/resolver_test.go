package command

import (
	"testing"

	"github.com/duet-sh/duet/internal/slot"
)

func TestResolveCustomVerbatim(t *testing.T) {
	for _, kind := range slot.Kinds() {
		if got := Resolve("custom", kind, "foo"); got != "foo" {
			t.Fatalf("custom %s: want foo, got %q", kind, got)
		}
	}
}

func TestResolveCustomEmptyFallsBack(t *testing.T) {
	if got := Resolve("custom", slot.Frontend, ""); got != defaultFrontendCommand {
		t.Fatalf("empty custom frontend: got %q", got)
	}
	if got := Resolve("custom", slot.Backend, ""); got != defaultBackendCommand {
		t.Fatalf("empty custom backend: got %q", got)
	}
	if Resolve("custom", slot.Frontend, "   ") == "" {
		t.Fatalf("resolve must never return an empty string")
	}
}

func TestResolveKnownFrameworks(t *testing.T) {
	cases := []struct {
		framework string
		kind      slot.Kind
		want      string
	}{
		{"angular", slot.Frontend, "ng serve"},
		{"React", slot.Frontend, "npm start"}, // case-insensitive
		{"django", slot.Backend, "python manage.py runserver"},
		{"spring", slot.Backend, "./mvnw spring-boot:run"},
	}
	for _, c := range cases {
		if got := Resolve(c.framework, c.kind, ""); got != c.want {
			t.Fatalf("%s/%s: want %q, got %q", c.framework, c.kind, c.want, got)
		}
	}
}

func TestResolveUnknownFrameworkFallsBack(t *testing.T) {
	if got := Resolve("zig-sandcastle", slot.Frontend, ""); got != defaultFrontendCommand {
		t.Fatalf("unknown frontend: got %q", got)
	}
	if got := Resolve("zig-sandcastle", slot.Backend, ""); got != defaultBackendCommand {
		t.Fatalf("unknown backend: got %q", got)
	}
}
