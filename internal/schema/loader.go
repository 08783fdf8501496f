package schema

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// signatureFile is the on-disk layout of a signature file:
//
//	[[signatures]]
//	name = "acme-chat"
//	family = "chat"
//	priority = 60
//	tables = ["acme_messages"]
//
//	[[signatures.fields]]
//	canonical = "body"
//	aliases = ["payload"]
//	kind = "text"
//	required = true
type signatureFile struct {
	Signatures []Signature `toml:"signatures"`
}

// ParseSignatures decodes signatures from TOML.
func ParseSignatures(data []byte) ([]Signature, error) {
	var f signatureFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse signatures: %v", domain.ErrInvalidInput, err)
	}
	if len(f.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signatures defined", domain.ErrInvalidInput)
	}
	// Validate eagerly so errors name the file, not the later merge.
	if _, err := NewRegistry(f.Signatures...); err != nil {
		return nil, err
	}
	return f.Signatures, nil
}

// LoadSignatures reads signatures from a TOML file.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signatures %s: %w", path, err)
	}
	sigs, err := ParseSignatures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sigs, nil
}

// LoadRegistry returns the default registry extended with the signatures
// from each file. Later files replace earlier same-named signatures.
func LoadRegistry(paths ...string) (*Registry, error) {
	reg := DefaultRegistry()
	for _, p := range paths {
		sigs, err := LoadSignatures(p)
		if err != nil {
			return nil, err
		}
		if reg, err = reg.With(sigs...); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return reg, nil
}
