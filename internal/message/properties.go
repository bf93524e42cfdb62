package message

import (
	"sort"
	"strings"
)

// Headers holds the parsed key/value pairs of message.properties.
// Required keys per spec.md §6: Message-ID, Subject, From, Date. Optional:
// To, Cc, Reply-To, Content-Type, plus any header preserved verbatim under
// its canonical name.
type Headers map[string]string

func (h Headers) Get(key string) string { return h[key] }

// EncodeProperties renders h as a line-oriented key=value document with the
// Java-Properties-style escape of '=', ':' and newline (spec.md §6).
func EncodeProperties(h Headers) []byte {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(escapeProperty(k))
		b.WriteByte('=')
		b.WriteString(escapeProperty(h[k]))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// DecodeProperties parses a message.properties document produced by
// EncodeProperties.
func DecodeProperties(data []byte) Headers {
	h := make(Headers)
	lines := splitUnescapedLines(string(data))
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := findUnescapedEquals(line)
		if idx < 0 {
			continue
		}
		key := unescapeProperty(line[:idx])
		val := unescapeProperty(line[idx+1:])
		h[key] = val
	}
	return h
}

func escapeProperty(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '=', ':':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescapeProperty(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '=', ':', '\\':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func findUnescapedEquals(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if line[i] == '=' {
			return i
		}
	}
	return -1
}

func splitUnescapedLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
