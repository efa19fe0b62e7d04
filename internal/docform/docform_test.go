package docform

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range parts {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, doc []byte, name string) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(content)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestDiscoverTags_PlainBody(t *testing.T) {
	body := []byte("Name: {{ last_name }}\nGeboren: {{dob}}\nName nochmal: {{ last_name }}")

	tags, err := DiscoverTags(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"last_name", "dob"}, tags)
}

func TestDiscoverTags_IgnoresNonTagBraces(t *testing.T) {
	body := []byte("{{ valid_tag }} but {{ not a tag }} and {{}} stay put")

	tags, err := DiscoverTags(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"valid_tag"}, tags)
}

func TestDiscoverTags_Docx(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:t>{{ last_name }}, {{ first_name }}</w:t>",
		"word/header1.xml":    "<w:t>{{ contract_date }}</w:t>",
	})

	tags, err := DiscoverTags(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"last_name", "first_name", "contract_date"}, tags)
}

func TestRender_PlainBody(t *testing.T) {
	body := []byte("Name: {{ last_name }}, Geboren: {{ dob }}")

	out, err := Render(body, map[string]string{"last_name": "Meier"})
	require.NoError(t, err)
	assert.Equal(t, "Name: Meier, Geboren: ", string(out))
}

func TestRender_Docx(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:t>{{ last_name }} &#8211; {{ city }}</w:t>",
	})

	out, err := Render(doc, map[string]string{"last_name": "Meier", "city": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "<w:t>Meier &#8211; Berlin</w:t>", readPart(t, out, "word/document.xml"))
}

func TestRender_DocxEscapesXMLValues(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": "<w:t>{{ employer }}</w:t>",
	})

	out, err := Render(doc, map[string]string{"employer": "Müller & Söhne <GmbH>"})
	require.NoError(t, err)
	assert.Equal(t, "<w:t>Müller &amp; Söhne &lt;GmbH&gt;</w:t>", readPart(t, out, "word/document.xml"))
}

func TestRender_DocxDeterministic(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:t>{{ last_name }}</w:t>",
	})
	values := map[string]string{"last_name": "Meier"}

	first, err := Render(doc, values)
	require.NoError(t, err)
	second, err := Render(doc, values)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical inputs must produce byte-identical output")
}

func TestRender_InvalidZip(t *testing.T) {
	broken := append([]byte("PK\x03\x04"), []byte("garbage")...)

	_, err := Render(broken, nil)
	assert.Error(t, err)
}

func TestIsZip(t *testing.T) {
	assert.True(t, IsZip([]byte("PK\x03\x04rest")))
	assert.False(t, IsZip([]byte("plain text")))
	assert.False(t, IsZip(nil))
}
