// Package testing is imported for its side effects by test binaries. It marks
// the process as a test run, so the mains return before opening stores, and
// keeps report caching off unless a test asks for a cache explicitly.
package testing

import "os"

var envDefaults = [...]struct{ key, value string }{
	{"ODYSSEY_TEST_MODE", "1"},
	{"REPORT_CACHE", "off"},
}

func init() {
	for _, kv := range envDefaults {
		if os.Getenv(kv.key) == "" {
			_ = os.Setenv(kv.key, kv.value)
		}
	}
}
