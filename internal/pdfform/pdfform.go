// Package pdfform reads and fills AcroForm fields in classic PDF files
// (uncompressed cross-reference table, form field dictionaries stored as
// plain objects). This covers the bank/contract form templates the engine
// targets; PDFs using cross-reference streams or object streams are
// rejected as unsupported so the caller can surface a schema error instead
// of producing a corrupt file.
package pdfform

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ErrUnsupported marks PDFs outside the supported classic subset.
var ErrUnsupported = errors.New("unsupported PDF encoding (cross-reference stream or missing trailer)")

// ErrValueNotBoolean is returned when a checkbox value cannot be read as a
// yes/no token.
var ErrValueNotBoolean = errors.New("value is not a recognizable boolean")

// Object is one indirect object of the file.
type Object struct {
	Num  int
	Gen  int
	Body []byte // bytes between "obj" and "endobj"
}

// Document is a parsed classic PDF.
type Document struct {
	header  []byte
	objects []*Object
	trailer []byte // raw trailer dictionary, including << >>
}

var objStartPattern = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj\b`)

// Parse reads a classic PDF into its object list. The cross-reference
// table is not trusted; objects are located by scanning, the way the
// original filler tolerated slightly broken files.
func Parse(raw []byte) (*Document, error) {
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF file")
	}
	if bytes.Contains(raw, []byte("/Type/XRef")) || bytes.Contains(raw, []byte("/Type /XRef")) {
		return nil, ErrUnsupported
	}
	trailerAt := bytes.LastIndex(raw, []byte("trailer"))
	if trailerAt < 0 {
		return nil, ErrUnsupported
	}

	doc := &Document{}
	if nl := bytes.IndexByte(raw, '\n'); nl > 0 {
		doc.header = raw[:nl]
	} else {
		doc.header = []byte("%PDF-1.7")
	}

	trailer, err := extractDict(raw[trailerAt+len("trailer"):])
	if err != nil {
		return nil, fmt.Errorf("malformed trailer: %w", err)
	}
	doc.trailer = trailer

	pos := 0
	for pos < len(raw) {
		loc := objStartPattern.FindSubmatchIndex(raw[pos:])
		if loc == nil {
			break
		}
		num, _ := strconv.Atoi(string(raw[pos+loc[2] : pos+loc[3]]))
		gen, _ := strconv.Atoi(string(raw[pos+loc[4] : pos+loc[5]]))
		bodyStart := pos + loc[1]

		end, err := findObjectEnd(raw, bodyStart)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}

		doc.objects = append(doc.objects, &Object{
			Num:  num,
			Gen:  gen,
			Body: bytes.TrimSpace(raw[bodyStart:end]),
		})
		pos = end + len("endobj")
	}

	if len(doc.objects) == 0 {
		return nil, fmt.Errorf("no indirect objects found")
	}
	return doc, nil
}

// findObjectEnd locates the "endobj" terminating the object starting at
// from. If the object carries a stream, the scan skips past "endstream"
// first so binary stream data cannot truncate the object.
func findObjectEnd(raw []byte, from int) (int, error) {
	search := from
	if streamAt := indexWithin(raw, from, []byte("stream")); streamAt >= 0 {
		endObjAt := indexWithin(raw, from, []byte("endobj"))
		if endObjAt < 0 {
			return 0, fmt.Errorf("missing endobj")
		}
		if streamAt < endObjAt {
			endStream := indexWithin(raw, streamAt, []byte("endstream"))
			if endStream < 0 {
				return 0, fmt.Errorf("missing endstream")
			}
			search = endStream + len("endstream")
		}
	}
	end := indexWithin(raw, search, []byte("endobj"))
	if end < 0 {
		return 0, fmt.Errorf("missing endobj")
	}
	return end, nil
}

func indexWithin(raw []byte, from int, needle []byte) int {
	idx := bytes.Index(raw[from:], needle)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// object returns the object with the given number, or nil.
func (d *Document) object(num int) *Object {
	for _, o := range d.objects {
		if o.Num == num {
			return o
		}
	}
	return nil
}

// Serialize writes the document back out as a well-formed classic PDF:
// objects in ascending number order, a freshly computed cross-reference
// table, and the original trailer with an updated /Size. Output is fully
// deterministic for a given document state.
func (d *Document) Serialize() []byte {
	objs := make([]*Object, len(d.objects))
	copy(objs, d.objects)
	sort.Slice(objs, func(i, j int) bool { return objs[i].Num < objs[j].Num })

	maxNum := 0
	offsets := make(map[int]int)

	var out bytes.Buffer
	out.Write(d.header)
	out.WriteByte('\n')

	for _, o := range objs {
		offsets[o.Num] = out.Len()
		fmt.Fprintf(&out, "%d %d obj\n", o.Num, o.Gen)
		out.Write(o.Body)
		out.WriteString("\nendobj\n")
		if o.Num > maxNum {
			maxNum = o.Num
		}
	}

	xrefOffset := out.Len()
	size := maxNum + 1
	fmt.Fprintf(&out, "xref\n0 %d\n", size)
	out.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&out, "%010d 00000 n \n", off)
		} else {
			out.WriteString("0000000000 00000 f \n")
		}
	}

	trailer := setDictInt(d.trailer, "/Size", size)
	trailer = removeDictKey(trailer, "/Prev")
	out.WriteString("trailer\n")
	out.Write(trailer)
	fmt.Fprintf(&out, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return out.Bytes()
}
