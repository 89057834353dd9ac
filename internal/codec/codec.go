// Package codec is the persistence encoding of models.Message.
//
// Entries are CBOR maps with small integer keys, written with Core
// Deterministic Encoding (RFC 8949 §4.2), so the same message always
// produces the same bytes. Decoding ignores unknown keys, which lets
// newer writers add fields without breaking replay on older readers.
package codec

import (
	"errors"
	"fmt"

	"messenger/internal/models"

	"github.com/fxamacker/cbor/v2"
)

// ErrCorrupt is returned for blobs that are not an encoded Message.
var ErrCorrupt = errors.New("codec: corrupt message entry")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode returns the stored form of m.
func Encode(m models.Message) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (models.Message, error) {
	var m models.Message
	if len(data) == 0 {
		return m, ErrCorrupt
	}
	if err := decMode.Unmarshal(data, &m); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}
