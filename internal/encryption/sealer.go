package encryption

// Sealer encrypts whole index documents and reverses the operation.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Unseal(ciphertext []byte) ([]byte, error)
}
