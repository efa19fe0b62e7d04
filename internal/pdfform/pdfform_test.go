package pdfform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formPDF is a minimal classic AcroForm PDF with a text field, a checkbox,
// and a choice field. Offsets in the xref table are dummies; the parser
// locates objects by scanning.
const formPDF = `%PDF-1.7
1 0 obj
<< /Type /Catalog /Pages 2 0 R /AcroForm 7 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /Annots [4 0 R 5 0 R 6 0 R] >>
endobj
4 0 obj
<< /Type /Annot /Subtype /Widget /FT /Tx /T (last_name) /TU (Nachname) /Rect [50 700 250 720] >>
endobj
5 0 obj
<< /Type /Annot /Subtype /Widget /FT /Btn /T (self_employed) /AP << /N << /Ja << >> /Off << >> >> >> /Rect [50 650 70 670] >>
endobj
6 0 obj
<< /Type /Annot /Subtype /Widget /FT /Ch /T (employment_status) /Opt [(angestellt) (selbststaendig)] /Rect [50 600 250 620] >>
endobj
7 0 obj
<< /Fields [4 0 R 5 0 R 6 0 R] >>
endobj
xref
0 8
0000000000 65535 f
trailer
<< /Size 8 /Root 1 0 R >>
startxref
0
%%EOF
`

func TestParse_Fields(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	fields := doc.Fields()
	require.Len(t, fields, 3)

	assert.Equal(t, "last_name", fields[0].Name)
	assert.Equal(t, "Nachname", fields[0].Label)
	assert.Equal(t, FieldText, fields[0].Type)

	assert.Equal(t, "self_employed", fields[1].Name)
	assert.Equal(t, FieldButton, fields[1].Type)

	assert.Equal(t, "employment_status", fields[2].Name)
	assert.Equal(t, FieldChoice, fields[2].Type)
	assert.Equal(t, []string{"angestellt", "selbststaendig"}, fields[2].Options)
}

func TestParse_RejectsNonPDF(t *testing.T) {
	_, err := Parse([]byte("hello world"))
	assert.Error(t, err)
}

func TestParse_RejectsXRefStreams(t *testing.T) {
	raw := "%PDF-1.7\n1 0 obj\n<< /Type /XRef >>\nendobj\ntrailer\n<< /Size 2 >>\n%%EOF"
	_, err := Parse([]byte(raw))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParse_RejectsMissingTrailer(t *testing.T) {
	raw := "%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"
	_, err := Parse([]byte(raw))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSetField_Text(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("last_name", "Meier"))

	out := doc.Serialize()
	reparsed, err := Parse(out)
	require.NoError(t, err)
	fields := reparsed.Fields()
	assert.Equal(t, "Meier", fields[0].Value)

	// Interactive form structure preserved, appearances flagged.
	assert.Contains(t, string(out), "/NeedAppearances true")
	assert.Contains(t, string(out), "/FT /Tx")
}

func TestSetField_TextNonASCII(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("last_name", "Müller"))

	reparsed, err := Parse(doc.Serialize())
	require.NoError(t, err)
	assert.Equal(t, "Müller", reparsed.Fields()[0].Value)
}

func TestSetField_CheckboxUsesOnState(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("self_employed", "ja"))

	out := string(doc.Serialize())
	assert.Contains(t, out, "/V /Ja")
	assert.Contains(t, out, "/AS /Ja")
}

func TestSetField_CheckboxFalse(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("self_employed", "nein"))
	assert.Contains(t, string(doc.Serialize()), "/V /Off")
}

func TestSetField_CheckboxRejectsNonBoolean(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	err = doc.SetField("self_employed", "vielleicht")
	assert.ErrorIs(t, err, ErrValueNotBoolean)
}

func TestSetField_Choice(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("employment_status", "angestellt"))

	reparsed, err := Parse(doc.Serialize())
	require.NoError(t, err)
	assert.Equal(t, "angestellt", reparsed.Fields()[2].Value)
}

func TestSetField_Unknown(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	err = doc.SetField("no_such_field", "x")
	assert.Error(t, err)
}

func TestSetField_OverwritesExistingValue(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	require.NoError(t, doc.SetField("last_name", "Alt"))
	require.NoError(t, doc.SetField("last_name", "Neu"))

	reparsed, err := Parse(doc.Serialize())
	require.NoError(t, err)
	assert.Equal(t, "Neu", reparsed.Fields()[0].Value)
	assert.Equal(t, 1, strings.Count(string(doc.Serialize()), "(Neu)"))
	assert.NotContains(t, string(doc.Serialize()), "(Alt)")
}

func TestSerialize_Deterministic(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)
	require.NoError(t, doc.SetField("last_name", "Meier"))

	first := doc.Serialize()
	second := doc.Serialize()
	assert.Equal(t, first, second)
}

func TestSerialize_RebuildsXref(t *testing.T) {
	doc, err := Parse([]byte(formPDF))
	require.NoError(t, err)

	out := string(doc.Serialize())
	assert.Contains(t, out, "xref\n0 8\n")
	assert.Contains(t, out, "/Size 8")
	assert.True(t, strings.HasSuffix(out, "%%EOF\n"))
}

func TestEncodeTextString(t *testing.T) {
	assert.Equal(t, "(Meier)", string(encodeTextString("Meier")))
	assert.Equal(t, `(a\(b\)c\\d)`, string(encodeTextString(`a(b)c\d`)))
	assert.Equal(t, "<FEFF004D00FC006C006C00650072>", string(encodeTextString("Müller")))
}

func TestDecodeString(t *testing.T) {
	assert.Equal(t, "Meier", decodeString([]byte("(Meier)")))
	assert.Equal(t, "a(b)", decodeString([]byte(`(a\(b\))`)))
	assert.Equal(t, "Müller", decodeString([]byte("<FEFF004D00FC006C006C00650072>")))
	assert.Equal(t, "AB", decodeString([]byte("<4142>")))
}
