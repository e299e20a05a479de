package definition

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/cbergoon/merkletree"
)

// Fingerprint is the merkle hash of a Definition.
// Sections are hashed individually so that a recompile can report exactly
// which models or APIs changed.
type Fingerprint struct {
	Root     string            // Root hash of the whole definition
	Sections map[string]string // Section key ("model:Org", "api:", ...) -> hash
}

// sectionContent implements merkletree.Content for one section.
type sectionContent struct {
	key  string
	hash string
}

func (s sectionContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(s.key + "|" + s.hash))
	return h[:], nil
}

func (s sectionContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(sectionContent)
	if !ok {
		return false, nil
	}
	return s.key == o.key && s.hash == o.hash, nil
}

// ComputeFingerprint hashes every model, API, populator and the remaining
// top-level blocks of def.
func ComputeFingerprint(def *Definition) (*Fingerprint, error) {
	fp := &Fingerprint{Sections: make(map[string]string)}

	add := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fp.Sections[key] = hashBytes(b)
		return nil
	}

	for _, m := range def.Models {
		if err := add("model:"+m.Name, m); err != nil {
			return nil, err
		}
	}
	for _, a := range def.APIs {
		if err := add("api:"+a.Name, a); err != nil {
			return nil, err
		}
	}
	for _, p := range def.Populators {
		if err := add("populator:"+p.Name, p); err != nil {
			return nil, err
		}
	}
	if err := add("runtimes", def.Runtimes); err != nil {
		return nil, err
	}
	if err := add("generators", def.Generators); err != nil {
		return nil, err
	}
	if err := add("authenticator", def.Authenticator); err != nil {
		return nil, err
	}

	keys := fp.SectionKeys()
	contents := make([]merkletree.Content, 0, len(keys))
	for _, k := range keys {
		contents = append(contents, sectionContent{key: k, hash: fp.Sections[k]})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, err
	}
	fp.Root = hex.EncodeToString(tree.MerkleRoot())
	return fp, nil
}

// SectionKeys returns the section keys in sorted order.
func (f *Fingerprint) SectionKeys() []string {
	keys := make([]string, 0, len(f.Sections))
	for k := range f.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Changed lists the sections that differ between f and other, including
// sections present in only one of them.
func (f *Fingerprint) Changed(other *Fingerprint) []string {
	if other == nil || f.Root == other.Root {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for k, h := range f.Sections {
		seen[k] = true
		if other.Sections[k] != h {
			out = append(out, k)
		}
	}
	for k := range other.Sections {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
