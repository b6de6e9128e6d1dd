// encoding.go provides the canonical CBOR codec shared by every consensus
// record. All consensus-visible structures are encoded with RFC 8949
// canonical options (sorted map keys, shortest-form integers) so that
// re-encoding a decoded record is byte-identical across implementations.
package types

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("types: canonical cbor enc mode: " + err.Error())
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("types: cbor dec mode: " + err.Error())
	}
	decMode = dm
}

// MarshalCanonical encodes v as canonical CBOR.
func MarshalCanonical(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCanonical decodes canonical CBOR data into v. Duplicate map keys
// and indefinite-length items are rejected.
func UnmarshalCanonical(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}
