package pq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLSN(t *testing.T) {
	t.Run("should parse upper and lower halves", func(t *testing.T) {
		lsn, err := ParseLSN("16/B374D848")

		require.NoError(t, err)
		assert.Equal(t, LSN(0x16B374D848), lsn)
	})

	t.Run("should round trip through String", func(t *testing.T) {
		lsn, err := ParseLSN("0/15E7A48")

		require.NoError(t, err)
		assert.Equal(t, "0/15E7A48", lsn.String())
	})

	t.Run("should fail on garbage", func(t *testing.T) {
		_, err := ParseLSN("not-an-lsn")

		assert.Error(t, err)
	})
}
