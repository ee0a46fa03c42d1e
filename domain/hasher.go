package domain

// Hasher is the core port for any hashing strategy. OTP codes are stored
// hashed with it.
type Hasher interface {
	Hash(data []byte) string
}
