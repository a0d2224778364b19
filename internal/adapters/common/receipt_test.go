package common

import (
	"strings"
	"testing"

	"github.com/replenmobile/ordersend/internal/order"
)

func TestSimulatedRefDeterministic(t *testing.T) {
	a := SimulatedRef(order.MethodFax, "ORD-20250825-AB12CD34")
	b := SimulatedRef(order.MethodFax, "ORD-20250825-AB12CD34")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "SIM-FAX-") {
		t.Fatalf("reference %q missing channel prefix", a)
	}
	if len(a) != len("SIM-FAX-")+8 {
		t.Fatalf("reference %q has unexpected length", a)
	}
}

func TestSimulatedRefVariesByChannelAndOrder(t *testing.T) {
	fax := SimulatedRef(order.MethodFax, "ORD-1")
	email := SimulatedRef(order.MethodEmail, "ORD-1")
	other := SimulatedRef(order.MethodFax, "ORD-2")

	if fax == email {
		t.Fatal("different channels produced the same reference")
	}
	if fax == other {
		t.Fatal("different orders produced the same reference")
	}
}

func TestTruncateRaw(t *testing.T) {
	if got := TruncateRaw("abcdef", 0); got != "" {
		t.Fatalf("zero limit should empty the value, got %q", got)
	}
	if got := TruncateRaw("abc", 10); got != "abc" {
		t.Fatalf("short value should round-trip, got %q", got)
	}
	if got := TruncateRaw("やまや商店", 3); got != "やまや" {
		t.Fatalf("multibyte truncation wrong: %q", got)
	}
}
