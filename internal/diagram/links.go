package diagram

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoDiagram is returned when links are requested before any diagram has
// been generated. User actions treat this as a transient notification, not
// a failure.
var ErrNoDiagram = errors.New("no diagram code available")

// Sharing service base URLs.
const (
	mermaidInkBase  = "https://mermaid.ink/img/"
	mermaidLiveBase = "https://mermaid.live/edit#base64:"
	krokiSVGBase    = "https://kroki.io/graphviz/svg/"
	krokiPNGBase    = "https://kroki.io/graphviz/png/"
)

// Link is one shareable URL for a diagram.
type Link struct {
	Label string
	URL   string
}

// Links produces shareable, stateless URLs that reproduce the diagram on a
// third-party service. The output is a pure function of the state: identical
// inputs always yield identical URLs.
//
// Mermaid diagrams get a mermaid.ink image link and a mermaid.live editor
// link; graphviz diagrams get kroki.io SVG and PNG links. Unknown kinds
// produce an empty set, never an error.
func Links(st State) ([]Link, error) {
	if st.Empty() {
		return nil, ErrNoDiagram
	}

	switch st.Kind {
	case KindMermaid:
		envelope, err := liveEnvelope(st.Source)
		if err != nil {
			return nil, fmt.Errorf("encoding mermaid.live envelope: %w", err)
		}

		return []Link{
			{Label: "Mermaid Ink (Image)", URL: mermaidInkBase + base64URL([]byte(st.Source))},
			{Label: "Mermaid Live Editor", URL: mermaidLiveBase + base64URL(envelope)},
		}, nil

	case KindGraphviz:
		enc, err := krokiEncode(st.Source)
		if err != nil {
			return nil, fmt.Errorf("encoding kroki payload: %w", err)
		}

		return []Link{
			{Label: "Kroki (SVG)", URL: krokiSVGBase + enc},
			{Label: "Kroki (PNG)", URL: krokiPNGBase + enc},
		}, nil
	}

	return nil, nil
}

// liveEnvelope builds the mermaid.live editor state JSON. HTML escaping is
// off: the editor decodes raw JSON, and sources full of arrows ("-->") must
// not turn into > sequences.
func liveEnvelope(source string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any{
		"code":    source,
		"mermaid": map[string]string{"theme": "default"},
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// base64URL encodes bytes as URL-safe base64: standard encoding with
// '+' -> '-', '/' -> '_', and trailing '=' padding stripped.
func base64URL(data []byte) string {
	std := base64.StdEncoding.EncodeToString(data)
	std = strings.ReplaceAll(std, "+", "-")
	std = strings.ReplaceAll(std, "/", "_")
	return strings.TrimRight(std, "=")
}

// krokiEncode produces the Kroki-compatible encoding of diagram source:
// zlib-compress at the default level, then URL-safe base64.
func krokiEncode(source string) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(source)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64URL(buf.Bytes()), nil
}
