package utils

import (
	"crypto/rand"
	"errors"
	"strings"
)

// DocRefHookFunc defines the signature for the NewDocRef test hook.
// It returns a DocRef and a boolean indicating whether to override the default generation.
type DocRefHookFunc func() (ref DocRef, override bool)

// NewDocRefHook is a package-level variable that tests can set to override NewDocRef behavior.
var NewDocRefHook DocRefHookFunc

// DocRefPrefix precedes the encoded bytes in the printable form.
const DocRefPrefix = "DOC-"

// DocRef is a 5-byte random reference for a published document, printed as DOC-XXXXXXXX.
type DocRef [5]byte

// NewDocRef creates a new DocRef using random data
func NewDocRef() DocRef {
	if NewDocRefHook != nil {
		if ref, override := NewDocRefHook(); override {
			return ref
		}
	}

	var ref DocRef
	if _, err := rand.Read(ref[:]); err != nil {
		// fallback to zeros if random fails; the insert retry picks another
		ref = DocRef{}
	}
	return ref
}

// Crockford Base32 encoding alphabet (uppercase)
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Mapping from Crockford Base32 chars to their values
var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 32)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}

	// Add lowercase variants
	lower := strings.ToLower(crockfordAlphabet)
	for i := range lower {
		if i >= 10 { // Skip numbers
			crockfordDecodeMap[lower[i]] = byte(i)
		}
	}

	// Add commonly confused characters
	crockfordDecodeMap['O'] = crockfordDecodeMap['0']
	crockfordDecodeMap['o'] = crockfordDecodeMap['0']
	crockfordDecodeMap['I'] = crockfordDecodeMap['1']
	crockfordDecodeMap['i'] = crockfordDecodeMap['1']
	crockfordDecodeMap['L'] = crockfordDecodeMap['1']
	crockfordDecodeMap['l'] = crockfordDecodeMap['1']
}

// String returns DOC- followed by the 8-character Crockford Base32 encoding, most significant bits first.
func (r DocRef) String() string {
	var bits uint64
	for _, b := range r {
		bits = bits<<8 | uint64(b)
	}
	// 5 bytes = 40 bits = exactly 8 characters
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = crockfordAlphabet[bits&0x1F]
		bits >>= 5
	}
	return DocRefPrefix + string(out)
}

// ParseDocRef accepts the printable form, with or without the prefix, hyphens and spaces ignored.
func ParseDocRef(s string) (DocRef, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), DocRefPrefix)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")

	if len(s) != 8 {
		return DocRef{}, errors.New("invalid document reference: expected 8 characters after DOC-")
	}

	var bits uint64
	for i := 0; i < len(s); i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return DocRef{}, errors.New("invalid character in document reference")
		}
		bits = bits<<5 | uint64(val)
	}

	var ref DocRef
	for i := 4; i >= 0; i-- {
		ref[i] = byte(bits & 0xFF)
		bits >>= 8
	}
	return ref, nil
}
