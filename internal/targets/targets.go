// Package targets holds the built-in harnesses: small C string routines whose
// goal branch is the fuzzing objective. Every branch reports a coverage site
// so the engine can climb towards the goal one matched byte at a time.
package targets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"alma.local/greybox/coverage"
	"alma.local/greybox/harness"
)

// Spec is a registered target plus the session shape it expects.
type Spec struct {
	Target  *harness.Target
	MapSize int
	Seed    []byte
	About   string
}

var catalog = map[string]Spec{}

func add(name string, mapSize, seedLen int, about string, fn harness.Func) {
	catalog[name] = Spec{
		Target:  harness.Register(name, fn),
		MapSize: mapSize,
		Seed:    make([]byte, seedLen),
		About:   about,
	}
}

// Find returns the spec registered under name.
func Find(name string) (Spec, error) {
	s, ok := catalog[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", harness.ErrUnknown, name)
	}
	s.Seed = append([]byte{}, s.Seed...)
	return s, nil
}

// All lists the built-in targets by name.
func All() []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target.Name < out[j].Target.Name })
	return out
}

// cstr cuts b at its first NUL.
func cstr(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// casecmp compares like strcasecmp, reporting site base+i for every matched
// position i.
func casecmp(a, b []byte, base int) int {
	for i := 0; ; i++ {
		var ca, cb byte
		if i < len(a) {
			ca = lower(a[i])
		}
		if i < len(b) {
			cb = lower(b[i])
		}
		if ca != cb {
			return int(ca) - int(cb)
		}
		if ca == 0 {
			return 0
		}
		coverage.Hit(base + i)
	}
}

// cmp is strcmp with the same site reporting as casecmp.
func cmp(a, b []byte, base int) int {
	for i := 0; ; i++ {
		var ca, cb byte
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if ca != cb {
			return int(ca) - int(cb)
		}
		if ca == 0 {
			return 0
		}
		coverage.Hit(base + i)
	}
}

// span is strspn over a NUL-terminated s, reporting one site per accepted
// byte.
func span(s []byte, accept string, base int) int {
	n := 0
	for _, c := range cstr(s) {
		if !bytes.Contains([]byte(accept), []byte{c}) {
			break
		}
		coverage.Hit(base + n)
		n++
	}
	return n
}

const lowercase = "abcdefghijklmnopqrstuvwxyz"

func init() {
	add("strlen-offset", 8, 4, `strlen("abc" + a) == 2 for a 32-bit a in [0, 3)`, func(data []byte) int {
		if len(data) < 4 {
			return -1
		}
		a := int32(binary.LittleEndian.Uint32(data))
		if a < 0 || a >= 3 {
			coverage.Hit(0)
			return -1
		}
		coverage.Hit(1)
		if len("abc"[a:]) == 2 {
			coverage.Objective()
			return 0
		}
		coverage.Hit(2)
		return 1
	})

	add("strchr", 4, 4, `strchr(str, 'd') == str`, func(data []byte) int {
		s := cstr(data)
		if len(s) > 0 && s[0] == 'd' {
			coverage.Objective()
			return 0
		}
		coverage.Hit(0)
		return 1
	})

	add("strcasecmp", 8, 3, `strcasecmp(str, "Ho") == 0`, func(data []byte) int {
		if casecmp(data, []byte("Ho"), 0) != 0 {
			coverage.Hit(4)
			return 0
		}
		coverage.Objective()
		return 1
	})

	add("strcat", 16, 5, `a == "a" && strcat(b, a) == "ba"`, func(data []byte) int {
		if len(data) < 5 {
			return -2
		}
		a, b := cstr(data[:2]), cstr(data[2:5])
		if cmp(a, []byte("a"), 0) != 0 {
			coverage.Hit(4)
			return 1
		}
		cat := append(append([]byte{}, b...), a...)
		if cmp(cat, []byte("ba"), 5) != 0 {
			coverage.Hit(9)
			return -1
		}
		coverage.Objective()
		return 0
	})

	add("strrchr", 8, 3, `strrchr(str, 'd') == str && strrchr(str, 's') == str + 1`, func(data []byte) int {
		s := cstr(data)
		if bytes.LastIndexByte(s, 'd') != 0 {
			coverage.Hit(0)
			return 2
		}
		coverage.Hit(1)
		if bytes.LastIndexByte(s, 's') != 1 {
			coverage.Hit(2)
			return 1
		}
		coverage.Objective()
		return 0
	})

	add("strspn", 16, 10, `strspn(haystack, lowercase) >= 3`, func(data []byte) int {
		if span(data, lowercase, 0) >= 3 {
			coverage.Objective()
			return 0
		}
		coverage.Hit(12)
		return 1
	})

	add("strspn-range", 16, 10, `3 <= strspn(haystack, lowercase) <= 5`, func(data []byte) int {
		n := span(data, lowercase, 0)
		if n < 3 {
			coverage.Hit(12)
			return 1
		}
		if n <= 5 {
			coverage.Objective()
			return 2
		}
		coverage.Hit(13)
		return 0
	})

	add("strcasecmp-first", 8, 3, `strcasecmp("ab", b) != 0 && b[0] == 'A'`, func(data []byte) int {
		if casecmp([]byte("ab"), data, 0) == 0 {
			coverage.Hit(4)
			return 2
		}
		if len(data) > 0 && data[0] == 'A' {
			coverage.Objective()
			return 0
		}
		coverage.Hit(5)
		return 1
	})
}
