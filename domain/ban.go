package domain

// CredentialRecord is the persisted authentication state: the expected secret hash
// and the failed-attempt counter for every client address that has failed at least once
type CredentialRecord struct {
	Hash     string         `json:"hash"`     // Hex encoded SHA-256 of the shared secret
	Attempts map[string]int `json:"attempts"` // Client address -> consecutive failures
}

// Clone returns a deep copy so callers never share the attempts map
func (r *CredentialRecord) Clone() *CredentialRecord {
	if r == nil {
		return nil
	}
	attempts := make(map[string]int, len(r.Attempts))
	for addr, n := range r.Attempts {
		attempts[addr] = n
	}
	return &CredentialRecord{Hash: r.Hash, Attempts: attempts}
}
