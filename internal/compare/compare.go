package compare

import (
	"fmt"
	"strings"
)

// Outputs reports whether actual matches expected under the judge's
// whitespace-tolerant rules: both texts are split on whitespace runs and
// compared token by token, so differences purely in spacing or trailing
// newlines never cause a mismatch, but differing tokens or token counts do.
func Outputs(actual, expected []byte) bool {
	at := strings.Fields(string(actual))
	et := strings.Fields(string(expected))
	if len(at) != len(et) {
		return false
	}
	for i := range at {
		if at[i] != et[i] {
			return false
		}
	}
	return true
}

const maxDiffLines = 10

// Diff renders the mismatching lines of an expected/actual pair for the
// failure report. Lines are matched positionally and compared with the
// same whitespace tolerance as Outputs.
func Diff(expected, actual []byte) string {
	el := strings.Split(strings.TrimRight(string(expected), "\n"), "\n")
	al := strings.Split(strings.TrimRight(string(actual), "\n"), "\n")

	n := len(el)
	if len(al) > n {
		n = len(al)
	}

	var b strings.Builder
	shown := 0
	for i := 0; i < n; i++ {
		var e, a string
		if i < len(el) {
			e = el[i]
		}
		if i < len(al) {
			a = al[i]
		}
		if sameTokens(e, a) {
			continue
		}
		if shown == maxDiffLines {
			b.WriteString("  ...\n")
			break
		}
		fmt.Fprintf(&b, "  line %d: expected %q, got %q\n", i+1, e, a)
		shown++
	}
	return strings.TrimRight(b.String(), "\n")
}

func sameTokens(a, b string) bool {
	af := strings.Fields(a)
	bf := strings.Fields(b)
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] {
			return false
		}
	}
	return true
}
