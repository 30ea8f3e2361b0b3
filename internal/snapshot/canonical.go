package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON encodes s deterministically: object keys sorted, no
// insignificant whitespace, no HTML escaping, empty fields omitted.
func CanonicalJSON(s *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Round-trip through generic maps; encoding/json writes map keys sorted.
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to canonicalize snapshot: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// PrettyJSON encodes s indented for reading.
func PrettyJSON(s *Snapshot) ([]byte, error) {
	data, err := CanonicalJSON(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ComputeRev hashes the canonical form of s without its revision and
// generation time. It returns "sha256:<hex>".
func ComputeRev(s *Snapshot) (string, error) {
	stripped := *s
	stripped.Meta.SnapshotRev = ""
	stripped.Meta.GeneratedAt = ""
	data, err := CanonicalJSON(&stripped)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Decode parses a snapshot document. Unknown keys are rejected.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &s, nil
}

// Verify checks that a snapshot is well formed and that its recorded
// revision matches its content.
func Verify(s *Snapshot) (*VerifyResult, error) {
	result := &VerifyResult{SnapshotRev: s.Meta.SnapshotRev}
	if err := Validate(s); err != nil {
		result.Message = err.Error()
		return result, nil
	}

	rev, err := ComputeRev(s)
	if err != nil {
		return nil, err
	}
	switch {
	case s.Meta.SnapshotRev == "":
		result.Message = "snapshot has no snapshot_rev"
	case rev != s.Meta.SnapshotRev:
		result.Message = fmt.Sprintf("content does not match snapshot_rev (computed %s)", rev)
	default:
		result.Valid = true
		result.Message = "snapshot is intact"
	}
	return result, nil
}
