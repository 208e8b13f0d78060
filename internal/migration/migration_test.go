package migration

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	source, err := Source()
	require.NoError(t, err)

	version, err := source.First()
	require.NoError(t, err)

	count := 0
	for {
		count++
		_, _, err := source.ReadUp(version)
		require.NoError(t, err)
		_, _, err = source.ReadDown(version)
		require.NoError(t, err, "missing down migration for %d", version)

		next, err := source.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		version = next
	}
	assert.Equal(t, 2, count)
}
