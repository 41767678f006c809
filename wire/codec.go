package wire

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec writes documents in one wire format.
type Codec interface {
	// Name is the short format name used on the command line.
	Name() string
	// ContentType is the media type of the encoded form.
	ContentType() string
	// Encode writes doc to w.
	Encode(w io.Writer, doc *Document) error
	// Decode reads a document into generic maps and slices.
	Decode(r io.Reader) (map[string]any, error)
}

// JSON encodes documents with goccy/go-json.
type JSON struct {
	Indent bool
}

// Name returns "json".
func (JSON) Name() string { return "json" }

// ContentType returns the JSON media type.
func (JSON) ContentType() string { return "application/json" }

// Encode writes doc as JSON.
func (c JSON) Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	if c.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads a JSON document. Numbers decode as json.Number.
func (JSON) Decode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// Msgpack encodes documents with vmihailenco/msgpack, reusing the json
// struct tags so both formats share field names.
type Msgpack struct{}

// Name returns "msgpack".
func (Msgpack) Name() string { return "msgpack" }

// ContentType returns the MessagePack media type.
func (Msgpack) ContentType() string { return "application/msgpack" }

// Encode writes doc as MessagePack with sorted map keys.
func (Msgpack) Encode(w io.Writer, doc *Document) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode msgpack: %w", err)
	}
	return nil
}

// Decode reads a MessagePack document with loose interface decoding, so
// integers decode as int64 and maps as map[string]any.
func (Msgpack) Decode(r io.Reader) (map[string]any, error) {
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode msgpack: %w", err)
	}
	return out, nil
}

// CodecFor returns the codec named format.
func CodecFor(format string) (Codec, error) {
	switch format {
	case "json":
		return JSON{Indent: true}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown format %q", format)
	}
}

// Marshal encodes doc with c into a byte slice.
func Marshal(c Codec, doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
