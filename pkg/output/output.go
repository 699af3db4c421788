// Package output renders CLI results as indented JSON or XML.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/clbanning/mxj/v2"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

func init() {
	mxj.XMLEscapeChars(true)
}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatXML:
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or xml)", s)
	}
}

// Write renders a list of records. For XML the list becomes <root> with one
// <elem> per record.
func Write(w io.Writer, format Format, root, elem string, records interface{}) error {
	switch format {
	case FormatXML:
		return writeXML(w, root, elem, records)
	default:
		return writeJSON(w, records)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeXML(w io.Writer, root, elem string, records interface{}) error {
	generic, err := toGeneric(records)
	if err != nil {
		return err
	}

	var body interface{} = ""
	if list, ok := generic.([]interface{}); ok && len(list) > 0 {
		body = map[string]interface{}{elem: list}
	}

	doc, err := mxj.Map(map[string]interface{}{root: body}).XmlIndent("", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode XML: %w", err)
	}
	if _, err := w.Write(append(doc, '\n')); err != nil {
		return err
	}
	return nil
}

// toGeneric round-trips v through JSON so struct tags decide element names,
// then makes every map key a legal XML name.
func toGeneric(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return xmlSafe(generic), nil
}

func xmlSafe(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[xmlName(k)] = xmlSafe(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = xmlSafe(t[i])
		}
		return t
	case json.Number:
		return t.String()
	default:
		return v
	}
}

// xmlName prefixes keys such as route ids ("7") that cannot start an element.
func xmlName(k string) string {
	if k == "" {
		return "_"
	}
	r := []rune(k)[0]
	if unicode.IsLetter(r) || r == '_' {
		return k
	}
	return "_" + k
}
