package mockbackend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeed_IsValid(t *testing.T) {
	assert.NoError(t, DefaultSeed().Validate())
}

func TestParseSeed(t *testing.T) {
	data := []byte(`
always_linked: true
participant:
  id: p-1
  phone_number: "+70000000000"
  balance: 1200
categories:
  - guid: c1
    name: Книги
products:
  - guid: p1
    name: Роман
    price: 300
    is_available: true
    category:
      guid: c1
      name: Книги
`)

	seed, err := ParseSeed(data)
	require.NoError(t, err)
	assert.True(t, seed.AlwaysLinked)
	assert.Equal(t, 1200.0, seed.Participant.Balance)
	require.Len(t, seed.Products, 1)
	assert.True(t, seed.Products[0].IsAvailable)
	assert.Equal(t, "c1", seed.Products[0].Category.GUID)
}

func TestParseSeed_InvalidYAML(t *testing.T) {
	_, err := ParseSeed([]byte("products: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse seed")
}

func TestSeedValidate_CollectsAllErrors(t *testing.T) {
	data := []byte(`
participant:
  balance: -1
categories:
  - guid: c1
    name: A
  - guid: c1
products:
  - guid: p1
    name: X
    price: -5
    category: {guid: missing}
  - guid: p1
`)

	_, err := ParseSeed(data)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid seed")
	assert.Contains(t, msg, `categories[1]: duplicate guid "c1"`)
	assert.Contains(t, msg, "categories[1]: name is required")
	assert.Contains(t, msg, "products[0]: price must not be negative")
	assert.Contains(t, msg, `products[0]: unknown category "missing"`)
	assert.Contains(t, msg, `products[1]: duplicate guid "p1"`)
	assert.Contains(t, msg, "products[1]: name is required")
	assert.Contains(t, msg, "participant: balance must not be negative")
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)
	assert.Len(t, seed.Products, 4)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: []\nproducts: []\n"), 0o600))
	seed, err = LoadSeed(path)
	require.NoError(t, err)
	assert.Empty(t, seed.Products)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
