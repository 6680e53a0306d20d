package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reference points at one input document: either a dereferenceable URL or an
// inline payload carried as base64.
type Reference struct {
	URL           string
	Filename      string
	ContentBase64 string
}

type inlineReference struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"contentBase64"`
}

// Inline reports whether the reference carries its own bytes.
func (r Reference) Inline() bool {
	return r.URL == ""
}

// Label is the stable source label attached to every chunk of the document.
func (r Reference) Label(index int) string {
	if !r.Inline() {
		return r.URL
	}
	if name := strings.TrimSpace(r.Filename); name != "" {
		return name
	}
	return fmt.Sprintf("document-%d", index+1)
}

func (r Reference) MarshalJSON() ([]byte, error) {
	if !r.Inline() {
		return json.Marshal(r.URL)
	}
	return json.Marshal(inlineReference{Filename: r.Filename, ContentBase64: r.ContentBase64})
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	refs, err := ParseReferences(data)
	if err != nil {
		return err
	}
	if len(refs) != 1 {
		return fmt.Errorf("expected a single document reference")
	}
	*r = refs[0]
	return nil
}

// ParseReferences decodes the documents field of a request, which may be a
// single URL string or an array mixing URL strings and
// {filename, contentBase64} objects.
func ParseReferences(raw json.RawMessage) ([]Reference, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("decode document url: %w", err)
		}
		ref, err := urlReference(single)
		if err != nil {
			return nil, err
		}
		return []Reference{ref}, nil
	case '{':
		ref, err := objectReference(raw)
		if err != nil {
			return nil, err
		}
		return []Reference{ref}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		refs := make([]Reference, 0, len(items))
		for i, item := range items {
			item = json.RawMessage(strings.TrimSpace(string(item)))
			var (
				ref Reference
				err error
			)
			switch {
			case len(item) > 0 && item[0] == '"':
				var s string
				if err = json.Unmarshal(item, &s); err == nil {
					ref, err = urlReference(s)
				}
			case len(item) > 0 && item[0] == '{':
				ref, err = objectReference(item)
			default:
				err = fmt.Errorf("must be a URL string or a {filename, contentBase64} object")
			}
			if err != nil {
				return nil, fmt.Errorf("documents[%d]: %w", i, err)
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("documents must be a string or an array")
	}
}

func urlReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, fmt.Errorf("document url is empty")
	}
	return Reference{URL: s}, nil
}

func objectReference(raw json.RawMessage) (Reference, error) {
	var obj inlineReference
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Reference{}, fmt.Errorf("decode inline document: %w", err)
	}
	if strings.TrimSpace(obj.ContentBase64) == "" {
		return Reference{}, fmt.Errorf("inline document %q has no contentBase64", obj.Filename)
	}
	return Reference{Filename: obj.Filename, ContentBase64: obj.ContentBase64}, nil
}
