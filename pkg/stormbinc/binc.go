// Package stormbinc provides a Binc codec for Storm databases.
// It is selectable through the database.codec configuration entry.
package stormbinc

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

const name = "binc"

// Codec that encodes to and decodes from Binc.
// See https://github.com/ugorji/binc
var Codec = new(bincCodec)

type bincCodec int

func (c bincCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer

	err := codec.NewEncoder(&b, &codec.BincHandle{}).Encode(v)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c bincCodec) Unmarshal(b []byte, v any) error {
	return codec.NewDecoder(bytes.NewReader(b), &codec.BincHandle{}).Decode(v)
}

func (c bincCodec) Name() string {
	return name
}
