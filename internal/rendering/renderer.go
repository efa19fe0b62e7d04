package rendering

import (
	"fmt"

	"github.com/digifynow/autofill-agent/internal/docform"
	"github.com/digifynow/autofill-agent/internal/pdfform"
	"github.com/digifynow/autofill-agent/internal/types"
)

// Render fills a template document with the resolved mappings and returns
// the output bytes. Missing fields stay blank. Every resolved field must
// still exist in the document; a structural mismatch between the stored
// schema and the current bytes aborts the whole render. Rendering the same
// template with the same resolutions is byte-for-byte reproducible.
func Render(kind types.TemplateKind, doc []byte, resolved []types.ResolvedMapping) ([]byte, error) {
	values := fillValues(resolved)

	switch kind {
	case types.KindTaggedDoc:
		return renderTagged(doc, values)
	case types.KindAcroForm:
		return renderAcroForm(doc, values)
	default:
		return nil, &RenderError{Message: fmt.Sprintf("unsupported template kind %q", kind)}
	}
}

// fillValues keeps only the resolutions that carry a value to write.
func fillValues(resolved []types.ResolvedMapping) map[string]string {
	values := make(map[string]string, len(resolved))
	for _, r := range resolved {
		if r.Missing {
			continue
		}
		values[r.FieldID] = r.Value
	}
	return values
}

func renderTagged(doc []byte, values map[string]string) ([]byte, error) {
	tags, err := docform.DiscoverTags(doc)
	if err != nil {
		return nil, &RenderError{Message: "failed to read tagged document", Cause: err}
	}

	present := make(map[string]bool, len(tags))
	for _, tag := range tags {
		present[tag] = true
	}
	for fieldID := range values {
		if !present[fieldID] {
			return nil, &RenderError{Message: fmt.Sprintf("resolved field %q not found in document", fieldID)}
		}
	}

	out, err := docform.Render(doc, values)
	if err != nil {
		return nil, &RenderError{Message: "failed to render tagged document", Cause: err}
	}
	return out, nil
}

func renderAcroForm(doc []byte, values map[string]string) ([]byte, error) {
	pdf, err := pdfform.Parse(doc)
	if err != nil {
		return nil, &RenderError{Message: "failed to parse form document", Cause: err}
	}

	present := make(map[string]bool)
	for _, f := range pdf.Fields() {
		present[f.Name] = true
	}
	for fieldID := range values {
		if !present[fieldID] {
			return nil, &RenderError{Message: fmt.Sprintf("resolved field %q not found in document", fieldID)}
		}
	}

	// Fail before serializing so a bad value never yields partial output.
	for _, f := range pdf.Fields() {
		value, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := pdf.SetField(f.Name, value); err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("failed to fill field %q", f.Name), Cause: err}
		}
	}

	return pdf.Serialize(), nil
}
