package catalog

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Len(t, c.Products, 10)
	assert.Len(t, c.Categories, 7)
	assert.Contains(t, c.Categories, NoCategory)
	require.NotEmpty(t, c.People)
	for _, p := range c.People {
		assert.NotEmpty(t, p.Email)
		assert.Empty(t, p.UserID)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"email":"a@example.com","userCurrency":"CHF"}]`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.People, 1)
	assert.Equal(t, "CHF", c.People[0].UserCurrency)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = ParsePeople([]byte(`[]`))
	assert.Error(t, err)

	_, err = ParsePeople([]byte(`{`))
	assert.Error(t, err)
}

func TestRandomQuantity_StaysInCandidateSet(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	allowed := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 10: true}
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		q := RandomQuantity(r)
		assert.True(t, allowed[q], "unexpected quantity %d", q)
		seen[q] = true
	}
	assert.Len(t, seen, len(allowed))
}

func TestRandomPerson_ReturnsCopy(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	r := rand.New(rand.NewPCG(3, 4))

	p := c.RandomPerson(r).ForSession("session-1")
	assert.Equal(t, "session-1", p.UserID)
	for _, shared := range c.People {
		assert.Empty(t, shared.UserID)
	}
}

func TestRandomProductAndCategory(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	r := rand.New(rand.NewPCG(5, 6))

	for i := 0; i < 200; i++ {
		assert.Contains(t, Products, c.RandomProduct(r))
		assert.Contains(t, Categories, c.RandomCategory(r))
	}
}
