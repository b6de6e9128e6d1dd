// header.go defines the PoIES consensus header: the fields consumed by the
// acceptance engine. Execution-level fields (state roots, receipts) live in
// collaborating subsystems and are bound through ParentHash.
package types

import (
	"encoding/binary"
	"errors"
)

var errHeaderNil = errors.New("types: nil header")

// Header carries the consensus-critical fields of a candidate block.
type Header struct {
	ParentHash Hash   `cbor:"1,keyasint"`
	Height     Height `cbor:"2,keyasint"`
	PolicyRoot Hash   `cbor:"3,keyasint"`
	// Theta is the acceptance threshold the producer targeted, in μ-nats.
	// It must equal the retargeter's Θ for the header's epoch.
	Theta      uint64 `cbor:"4,keyasint"`
	EpochIndex Epoch  `cbor:"5,keyasint"`
	Nonce      uint64 `cbor:"6,keyasint"`
	// UDrawBind commits the producer to the template the u-draw was taken
	// over; validators recompute it from TemplateBytes.
	UDrawBind  Hash `cbor:"7,keyasint"`
	ProofsRoot Hash `cbor:"8,keyasint"`
	// BeaconRef is the hash of the BeaconRecord finalized by this block,
	// or zero when the block finalizes no round.
	BeaconRef Hash `cbor:"9,keyasint"`
}

// TemplateBytes returns the canonical encoding of the header with the
// nonce and the derived UDrawBind zeroed. The u-draw is taken over this
// template so that grinding the nonce cannot alter the committed contents.
func (h *Header) TemplateBytes() ([]byte, error) {
	if h == nil {
		return nil, errHeaderNil
	}
	tmpl := *h
	tmpl.Nonce = 0
	tmpl.UDrawBind = Hash{}
	return MarshalCanonical(&tmpl)
}

// NonceBytes returns the nonce as an 8-byte big-endian value, the form in
// which it enters the u-draw hash.
func (h *Header) NonceBytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h.Nonce)
	return b
}

// EncodeCanonical returns the canonical CBOR encoding of the full header.
func (h *Header) EncodeCanonical() ([]byte, error) {
	if h == nil {
		return nil, errHeaderNil
	}
	return MarshalCanonical(h)
}

// DecodeHeader decodes a canonical header encoding.
func DecodeHeader(data []byte) (*Header, error) {
	var h Header
	if err := UnmarshalCanonical(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
