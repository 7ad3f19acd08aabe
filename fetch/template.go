package fetch

import (
	"net/url"
	"strconv"
	"strings"
)

// Lookup resolves a single template placeholder name to its substitution.
// Returning ok=false leaves the placeholder in the output verbatim (§6.2).
type Lookup func(name string) (string, bool)

// SubstituteTemplateParameters replaces `{name}` occurrences per §6.2.
// Recognized placeholders across the system are level (alias z for
// quadtree), x, y, z (octree), version — callers build the Lookup to
// recognize whichever subset applies to their tile flavor.
func SubstituteTemplateParameters(template string, lookup Lookup) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i
		close := strings.IndexByte(template[open:], '}')
		if close < 0 {
			b.WriteString(template[i:])
			break
		}
		close += open
		b.WriteString(template[i:open])
		name := template[open+1 : close]
		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(template[open : close+1])
		}
		i = close + 1
	}
	return b.String()
}

// QuadtreeLookup builds a Lookup recognizing level (alias z), x, y.
func QuadtreeLookup(level, x, y int) Lookup {
	return func(name string) (string, bool) {
		switch name {
		case "level", "z":
			return itoa(level), true
		case "x":
			return itoa(x), true
		case "y":
			return itoa(y), true
		}
		return "", false
	}
}

// OctreeLookup builds a Lookup recognizing level, x, y, z.
func OctreeLookup(level, x, y, z int) Lookup {
	return func(name string) (string, bool) {
		switch name {
		case "level":
			return itoa(level), true
		case "x":
			return itoa(x), true
		case "y":
			return itoa(y), true
		case "z":
			return itoa(z), true
		}
		return "", false
	}
}

// WithVersion wraps a Lookup to also recognize "version".
func WithVersion(base Lookup, version string) Lookup {
	return func(name string) (string, bool) {
		if name == "version" {
			return version, true
		}
		return base(name)
	}
}

func itoa(v int) string { return strconv.Itoa(v) }

// ResolveRelative resolves a templated URL against a base URL following the
// relative-URL rules of the URI specification (§6.2), using net/url (the
// stdlib RFC 3986 implementation — no pack library reimplements this, so
// stdlib is the correct tool here, not a gap).
func ResolveRelative(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	// String() percent-encodes '{' and '}'; restore them so the template
	// placeholders survive resolution.
	resolved := b.ResolveReference(r).String()
	return strings.NewReplacer("%7B", "{", "%7D", "}").Replace(resolved), nil
}
