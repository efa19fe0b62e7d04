package pdfform

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the native AcroForm field type.
type FieldType string

const (
	FieldText    FieldType = "Tx"
	FieldButton  FieldType = "Btn"
	FieldChoice  FieldType = "Ch"
	fieldSig     FieldType = "Sig"
	FieldUnknown FieldType = ""
)

// Field is one interactive form field.
type Field struct {
	Name    string
	Label   string // /TU alternate text when present
	Type    FieldType
	Value   string
	Options []string // /Opt entries for choice fields

	objIndex int
}

// Fields returns the form fields of the document, in file order.
// Widget-only annotations without a name and signature fields are skipped.
func (d *Document) Fields() []Field {
	var fields []Field
	for i, obj := range d.objects {
		if !bytes.Contains(obj.Body, []byte("/FT")) {
			continue
		}
		nameTok, _, _, ok := dictToken(obj.Body, "/T")
		if !ok {
			continue
		}
		name := decodeString(nameTok)
		if name == "" {
			continue
		}

		field := Field{Name: name, objIndex: i}

		if ftTok, _, _, ok := dictToken(obj.Body, "/FT"); ok {
			field.Type = FieldType(strings.TrimPrefix(string(ftTok), "/"))
		}
		if field.Type == fieldSig {
			continue
		}
		if tuTok, _, _, ok := dictToken(obj.Body, "/TU"); ok {
			field.Label = decodeString(tuTok)
		}
		if vTok, _, _, ok := dictToken(obj.Body, "/V"); ok {
			field.Value = decodeFieldValue(vTok)
		}
		if optTok, _, _, ok := dictToken(obj.Body, "/Opt"); ok {
			field.Options = parseOptions(optTok)
		}

		fields = append(fields, field)
	}
	return fields
}

func decodeFieldValue(tok []byte) string {
	if len(tok) > 0 && tok[0] == '/' {
		return string(tok[1:])
	}
	return decodeString(tok)
}

var optStringPattern = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// parseOptions extracts the option strings of a /Opt array. Entries may be
// plain strings or [export display] pairs; the first string of each entry
// is taken, matching how values are written back.
func parseOptions(tok []byte) []string {
	var opts []string
	for _, m := range optStringPattern.FindAllSubmatch(tok, -1) {
		opts = append(opts, decodeLiteral(m[1]))
	}
	return opts
}

// SetField writes a value into the named field. Text and choice fields
// receive the string as /V; button fields interpret the value as a boolean
// and toggle between the widget's on-state and /Off. The field keeps its
// interactive nature; /NeedAppearances is set so viewers regenerate the
// visual appearance.
func (d *Document) SetField(name, value string) error {
	for _, f := range d.Fields() {
		if f.Name != name {
			continue
		}
		obj := d.objects[f.objIndex]

		switch f.Type {
		case FieldButton:
			on, ok := parseBoolToken(value)
			if !ok {
				return fmt.Errorf("field %q: %w", name, ErrValueNotBoolean)
			}
			state := "/Off"
			if on {
				state = "/" + onState(obj.Body)
			}
			obj.Body = setDictEntry(obj.Body, "/V", []byte(state))
			obj.Body = setDictEntry(obj.Body, "/AS", []byte(state))
		default:
			obj.Body = setDictEntry(obj.Body, "/V", encodeTextString(value))
		}

		d.ensureNeedAppearances()
		return nil
	}
	return fmt.Errorf("field %q not found", name)
}

// boolean token sets carried over from the original filler, German
// included.
var (
	trueTokens  = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "ja": true, "on": true, "checked": true, "x": true}
	falseTokens = map[string]bool{"0": true, "false": true, "no": true, "n": true, "nein": true, "off": true, "unchecked": true, "": true}
)

func parseBoolToken(v string) (value, ok bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	if trueTokens[s] {
		return true, true
	}
	if falseTokens[s] {
		return false, true
	}
	return false, false
}

var apStatePattern = regexp.MustCompile(`/N\s*<<\s*/([A-Za-z0-9#_.\-]+)`)

// onState picks the checked state name from the widget's /AP /N appearance
// dictionary, defaulting to Yes.
func onState(body []byte) string {
	for _, m := range apStatePattern.FindAllSubmatch(body, -1) {
		state := string(m[1])
		if state != "Off" {
			return state
		}
	}
	return "Yes"
}

// ensureNeedAppearances sets /NeedAppearances true on the AcroForm
// dictionary so viewers render the new values.
func (d *Document) ensureNeedAppearances() {
	for _, obj := range d.objects {
		tok, _, _, ok := dictToken(obj.Body, "/AcroForm")
		if !ok {
			continue
		}
		if num, isRef := parseRef(tok); isRef {
			if target := d.object(num); target != nil {
				target.Body = setDictEntry(target.Body, "/NeedAppearances", []byte("true"))
			}
			return
		}
		// Inline AcroForm dictionary inside the catalog.
		updated := setDictEntry(tok, "/NeedAppearances", []byte("true"))
		obj.Body = bytes.Replace(obj.Body, tok, updated, 1)
		return
	}
}
