package store

// SetScryptCost lowers the key derivation cost so tests run quickly.
func (s *TranscriptFileStore) SetScryptCost(n int) { s.scrypt.N = n }
