package encryption

import (
	"bytes"
	"fmt"
)

// testHeader is prepended by TestSealer so sealed output differs from the
// plaintext while staying deterministic.
var testHeader = []byte("GALENC\x00\x00")

// TestSealer is a deterministic Sealer for tests. It needs no keys.
type TestSealer struct{}

var _ Sealer = TestSealer{}

func (TestSealer) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(testHeader)+len(plaintext))
	out = append(out, testHeader...)
	return append(out, plaintext...), nil
}

func (TestSealer) Unseal(ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, testHeader) {
		return nil, fmt.Errorf("invalid test encryption header")
	}
	return bytes.Clone(ciphertext[len(testHeader):]), nil
}
