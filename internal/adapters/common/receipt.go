package common

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/replenmobile/ordersend/internal/order"
)

// DefaultRawBodyLimit defines the maximum number of characters retained from a
// provider response body when attaching it to a Receipt.
const DefaultRawBodyLimit = 1024

// Receipt captures the normalized outcome of a successful adapter dispatch.
type Receipt struct {
	ProviderRef string            `json:"provider_ref,omitempty"`
	Detail      string            `json:"detail,omitempty"`
	Simulated   bool              `json:"simulated"`
	Raw         string            `json:"raw,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// SimulatedRef derives the placeholder reference used for simulated
// dispatches. The same order reference and channel always yield the same
// value, so re-dispatching a simulated order is observably idempotent.
func SimulatedRef(method order.ContactMethod, reference string) string {
	h := fnv.New32a()
	h.Write([]byte(reference))
	h.Write([]byte{'|'})
	h.Write([]byte(method))
	return fmt.Sprintf("SIM-%s-%08X", strings.ToUpper(string(method)), h.Sum32())
}

// TruncateRaw trims the supplied string to the specified rune limit. If limit
// is zero or negative it returns an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	runes := []rune(raw)
	return string(runes[:limit])
}
