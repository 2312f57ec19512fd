// Package stormcbor provides a CBOR codec for Storm databases.
// It is selectable through the database.codec configuration entry.
package stormcbor

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

const name = "cbor"

// Codec that encodes to and decodes from CBOR (Concise Binary Object Representation).
// https://tools.ietf.org/html/rfc7049
var Codec = new(cborCodec)

type cborCodec int

func (c cborCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer

	err := codec.NewEncoder(&b, &codec.CborHandle{}).Encode(v)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c cborCodec) Unmarshal(b []byte, v any) error {
	return codec.NewDecoder(bytes.NewReader(b), &codec.CborHandle{}).Decode(v)
}

func (c cborCodec) Name() string {
	return name
}
