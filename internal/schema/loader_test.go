package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

const acmeSignatures = `
[[signatures]]
name = "acme-chat"
family = "chat"
priority = 60
tables = ["acme_*"]

[[signatures.fields]]
canonical = "body"
aliases = ["payload"]
kind = "text"
required = true
weight = 3

[[signatures.fields]]
canonical = "participant"
aliases = ["peer_ref"]
kind = "identifier"
weight = 2
`

func TestParseSignatures(t *testing.T) {
	sigs, err := ParseSignatures([]byte(acmeSignatures))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	s := sigs[0]
	assert.Equal(t, "acme-chat", s.Name)
	assert.Equal(t, domain.FamilyChat, s.Family)
	assert.Equal(t, 60, s.Priority)
	assert.Equal(t, []string{"acme_*"}, s.TablePatterns)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, KindText, s.Fields[0].Kind)
	assert.True(t, s.Fields[0].Required)
}

func TestParseSignatures_Lookups(t *testing.T) {
	data := `
[[signatures]]
name = "acme-ref"
family = "chat"

[[signatures.fields]]
canonical = "body"
required = true

[[signatures.fields]]
canonical = "participant"
kind = "identifier"

[[signatures.fields.lookups]]
column = "peer_id"
via = [
  { table = "peers", key = "_id", value = "number" },
]
`
	sigs, err := ParseSignatures([]byte(data))
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	require.Len(t, sigs[0].Fields, 2)

	lookups := sigs[0].Fields[1].Lookups
	require.Len(t, lookups, 1)
	assert.Equal(t, "peer_id", lookups[0].Column)
	assert.Equal(t, []Hop{{Table: "peers", Key: "_id", Value: "number"}}, lookups[0].Via)

	reg, err := NewRegistry(sigs...)
	require.NoError(t, err)
	profiles := NewDetector(WithRegistry(reg)).DetectTables([]domain.TableInfo{
		tbl("log", 2, "body TEXT", "peer_id INTEGER"),
		tbl("peers", 1, "_id INTEGER", "number TEXT"),
	})
	p, ok := profileFor(profiles, domain.FamilyChat)
	require.True(t, ok)
	assertColumn(t, p, domain.FieldParticipant, "peer_id")
	_, ok = p.Lookup(domain.FieldParticipant)
	assert.True(t, ok)
}

func TestParseSignatures_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "syntax", data: "[[signatures]\nname ="},
		{name: "empty", data: ""},
		{name: "bad family", data: "[[signatures]]\nname = \"x\"\nfamily = \"mail\"\n[[signatures.fields]]\ncanonical = \"body\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignatures([]byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.toml")
	require.NoError(t, os.WriteFile(path, []byte(acmeSignatures), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry().Len()+1, reg.Len())

	d := NewDetector(WithRegistry(reg))
	profiles := d.DetectTables([]domain.TableInfo{
		tbl("acme_messages", 1, "payload TEXT", "peer_ref TEXT"),
	})
	require.Len(t, profiles, 1)
	assert.Equal(t, "acme-chat", profiles[0].SignatureName)
	assertColumn(t, profiles[0], domain.FieldParticipant, "peer_ref")
}

func TestLoadSignatures_MissingFile(t *testing.T) {
	_, err := LoadSignatures(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
