package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"beta/b.parquet.txt":  "b",
		"alpha/a.parquet.txt": "a",
		"alpha/c.parquet.txt": "c",
		"alpha/notes.md":      "skip me",
		"stray.txt":           "not in a group",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	listing, err := Enumerate(root, Options{MemberPattern: "*.txt",
		TrimSuffix: ".txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "empty"}, listing.Groups)
	require.Len(t, listing.Items, 3)
	assert.Equal(t, "alpha", listing.Items[0].GroupID)
	assert.Equal(t, "a.parquet", listing.Items[0].MemberID)
	assert.Equal(t, filepath.Join(root, "alpha", "a.parquet.txt"),
		listing.Items[0].Path)
	assert.Equal(t, "c.parquet", listing.Items[1].MemberID)
	assert.Equal(t, "beta", listing.Items[2].GroupID)
	assert.Equal(t, []string{"empty"}, listing.EmptyGroups())
	assert.Len(t, listing.ByGroup()["alpha"], 2)
}

func TestEnumerateRecursiveMembers(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"g/x.txt":        "x",
		"g/nested/y.txt": "y",
	})
	listing, err := Enumerate(root, Options{MemberPattern: "**/*.txt"})
	require.NoError(t, err)
	ids := make([]string, 0)
	for _, item := range listing.Items {
		ids = append(ids, item.MemberID)
	}
	assert.ElementsMatch(t, []string{"x.txt", "nested/y.txt"}, ids)
}

func TestEnumerateFailures(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, ErrEnumeration)

	root := t.TempDir()
	writeTree(t, root, map[string]string{"loose.txt": "no groups"})
	_, err = Enumerate(root, Options{})
	assert.ErrorIs(t, err, ErrEnumeration)

	_, err = Enumerate(filepath.Join(root, "loose.txt"), Options{})
	assert.ErrorIs(t, err, ErrEnumeration)
}

func TestEnumerateWithoutMembers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "g1"), 0755))
	writeTree(t, root, map[string]string{"g2/notes.md": "not a text"})

	_, err := Enumerate(root, Options{MemberPattern: "*.txt"})
	assert.ErrorIs(t, err, ErrEnumeration)
}
