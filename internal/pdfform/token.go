package pdfform

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf16"
)

// extractDict returns the first balanced << ... >> dictionary in b,
// including the delimiters. Literal strings are skipped escape-aware so
// parentheses content cannot unbalance the scan.
func extractDict(b []byte) ([]byte, error) {
	start := bytes.Index(b, []byte("<<"))
	if start < 0 {
		return nil, fmt.Errorf("no dictionary found")
	}

	depth := 0
	i := start
	for i < len(b) {
		switch {
		case hasAt(b, i, "<<"):
			depth++
			i += 2
		case hasAt(b, i, ">>"):
			depth--
			i += 2
			if depth == 0 {
				return b[start:i], nil
			}
		case b[i] == '(':
			end, err := literalStringEnd(b, i)
			if err != nil {
				return nil, err
			}
			i = end
		default:
			i++
		}
	}
	return nil, fmt.Errorf("unbalanced dictionary")
}

func hasAt(b []byte, i int, s string) bool {
	return i+len(s) <= len(b) && string(b[i:i+len(s)]) == s
}

// literalStringEnd returns the index just past the closing paren of the
// literal string starting at i.
func literalStringEnd(b []byte, i int) (int, error) {
	depth := 0
	for ; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++ // skip escaped char
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated literal string")
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func skipWhitespace(b []byte, i int) int {
	for i < len(b) && isWhitespace(b[i]) {
		i++
	}
	return i
}

var refTail = regexp.MustCompile(`^\s+\d+\s+R`)

// scanValueToken returns the end index of the single value token starting
// at (or after whitespace from) i: string, hex string, dictionary, array,
// name, number, reference, or keyword.
func scanValueToken(b []byte, i int) (start, end int, err error) {
	i = skipWhitespace(b, i)
	if i >= len(b) {
		return 0, 0, fmt.Errorf("no value token")
	}
	start = i

	switch {
	case b[i] == '(':
		end, err = literalStringEnd(b, i)
		return start, end, err
	case hasAt(b, i, "<<"):
		dict, derr := extractDict(b[i:])
		if derr != nil {
			return 0, 0, derr
		}
		return start, i + len(dict), nil
	case b[i] == '<':
		close := bytes.IndexByte(b[i:], '>')
		if close < 0 {
			return 0, 0, fmt.Errorf("unterminated hex string")
		}
		return start, i + close + 1, nil
	case b[i] == '[':
		depth := 0
		for j := i; j < len(b); j++ {
			switch b[j] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return start, j + 1, nil
				}
			case '(':
				strEnd, serr := literalStringEnd(b, j)
				if serr != nil {
					return 0, 0, serr
				}
				j = strEnd - 1
			}
		}
		return 0, 0, fmt.Errorf("unterminated array")
	case b[i] == '/':
		j := i + 1
		for j < len(b) && !isDelim(b[j]) {
			j++
		}
		return start, j, nil
	default:
		j := i
		for j < len(b) && !isDelim(b[j]) {
			j++
		}
		// "N G R" indirect reference reads as one value.
		if isDigits(b[i:j]) {
			if tail := refTail.Find(b[j:]); tail != nil {
				return start, j + len(tail), nil
			}
		}
		if j == i {
			return 0, 0, fmt.Errorf("unexpected delimiter %q", b[i])
		}
		return start, j, nil
	}
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// dictToken locates key in dict and returns its raw value token along with
// the span [keyStart, valueEnd) covering the whole entry.
func dictToken(dict []byte, key string) (value []byte, keyStart, valueEnd int, ok bool) {
	for i := 0; i < len(dict); {
		idx := bytes.Index(dict[i:], []byte(key))
		if idx < 0 {
			return nil, 0, 0, false
		}
		at := i + idx
		after := at + len(key)
		// Reject partial name matches such as /Vx for key /V. A '/' always
		// starts a new token, so no preceding-character check is needed.
		if after < len(dict) && !isDelim(dict[after]) {
			i = after
			continue
		}
		start, end, err := scanValueToken(dict, after)
		if err != nil {
			return nil, 0, 0, false
		}
		return dict[start:end], at, end, true
	}
	return nil, 0, 0, false
}

// setDictEntry replaces key's value in dict, or inserts the entry before
// the closing >> when absent.
func setDictEntry(dict []byte, key string, rawValue []byte) []byte {
	if _, keyStart, valueEnd, ok := dictToken(dict, key); ok {
		var out bytes.Buffer
		out.Write(dict[:keyStart])
		out.WriteString(key)
		out.WriteByte(' ')
		out.Write(rawValue)
		out.Write(dict[valueEnd:])
		return out.Bytes()
	}

	close := bytes.LastIndex(dict, []byte(">>"))
	if close < 0 {
		return dict
	}
	var out bytes.Buffer
	out.Write(dict[:close])
	out.WriteString(key)
	out.WriteByte(' ')
	out.Write(rawValue)
	out.WriteByte(' ')
	out.Write(dict[close:])
	return out.Bytes()
}

// removeDictKey deletes key and its value from dict when present.
func removeDictKey(dict []byte, key string) []byte {
	_, keyStart, valueEnd, ok := dictToken(dict, key)
	if !ok {
		return dict
	}
	var out bytes.Buffer
	out.Write(dict[:keyStart])
	out.Write(dict[valueEnd:])
	return out.Bytes()
}

func setDictInt(dict []byte, key string, v int) []byte {
	return setDictEntry(dict, key, []byte(strconv.Itoa(v)))
}

// parseRef reads an "N G R" indirect reference token.
func parseRef(tok []byte) (int, bool) {
	fields := bytes.Fields(tok)
	if len(fields) != 3 || string(fields[2]) != "R" {
		return 0, false
	}
	num, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		return 0, false
	}
	return num, true
}

// decodeString decodes a PDF literal or hex string token into UTF-8.
func decodeString(tok []byte) string {
	if len(tok) >= 2 && tok[0] == '(' {
		return decodeLiteral(tok[1 : len(tok)-1])
	}
	if len(tok) >= 2 && tok[0] == '<' {
		return decodeHex(tok[1 : len(tok)-1])
	}
	return string(tok)
}

func decodeLiteral(b []byte) string {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		i++
		switch b[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '(', ')', '\\':
			out = append(out, b[i])
		default:
			// Octal escape \ddd (1-3 digits).
			if b[i] >= '0' && b[i] <= '7' {
				val := 0
				digits := 0
				for digits < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7' {
					val = val*8 + int(b[i]-'0')
					i++
					digits++
				}
				i--
				out = append(out, byte(val))
			} else {
				out = append(out, b[i])
			}
		}
	}
	return utf16BEToUTF8(out)
}

func decodeHex(b []byte) string {
	var clean []byte
	for _, c := range b {
		if !isWhitespace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, 0, len(clean)/2)
	for i := 0; i+1 < len(clean); i += 2 {
		v, err := strconv.ParseUint(string(clean[i:i+2]), 16, 8)
		if err != nil {
			return string(b)
		}
		out = append(out, byte(v))
	}
	return utf16BEToUTF8(out)
}

// utf16BEToUTF8 converts BOM-prefixed UTF-16BE text strings; anything else
// passes through as-is.
func utf16BEToUTF8(b []byte) string {
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		return string(b)
	}
	payload := b[2:]
	units := make([]uint16, 0, len(payload)/2)
	for i := 0; i+1 < len(payload); i += 2 {
		units = append(units, uint16(payload[i])<<8|uint16(payload[i+1]))
	}
	return string(utf16.Decode(units))
}

// encodeTextString encodes a Go string as a PDF text string token: a
// literal string for ASCII content, a BOM-prefixed UTF-16BE hex string
// otherwise (umlauts and friends).
func encodeTextString(s string) []byte {
	ascii := true
	for _, r := range s {
		if r > 126 || r < 32 {
			ascii = false
			break
		}
	}

	if ascii {
		var out bytes.Buffer
		out.WriteByte('(')
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '(', ')', '\\':
				out.WriteByte('\\')
			}
			out.WriteByte(s[i])
		}
		out.WriteByte(')')
		return out.Bytes()
	}

	units := utf16.Encode([]rune(s))
	var out bytes.Buffer
	out.WriteString("<FEFF")
	for _, u := range units {
		fmt.Fprintf(&out, "%04X", u)
	}
	out.WriteByte('>')
	return out.Bytes()
}
