package pq

import (
	goerrors "errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func fakeResults(columns ...string) []*pgconn.Result {
	if len(columns) == 0 {
		return nil
	}

	row := make([][]byte, 0, len(columns))
	for _, c := range columns {
		row = append(row, []byte(c))
	}

	return []*pgconn.Result{{Rows: [][][]byte{row}}}
}

func TestConnectivityError(t *testing.T) {
	cause := goerrors.New("connection refused")
	err := &ConnectivityError{Host: "primary.example.com", Err: cause}

	t.Run("should report the host but never credentials", func(t *testing.T) {
		assert.Contains(t, err.Error(), "primary.example.com")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("should unwrap to the cause", func(t *testing.T) {
		assert.True(t, goerrors.Is(err, cause))
	})
}

func TestResourceCreationError(t *testing.T) {
	cause := goerrors.New("permission denied")
	err := &ResourceCreationError{Resource: "publication", Name: "products_publication", Err: cause}

	t.Run("should name the resource kind and the resource", func(t *testing.T) {
		assert.Contains(t, err.Error(), "publication")
		assert.Contains(t, err.Error(), "products_publication")
	})

	t.Run("should unwrap to the cause", func(t *testing.T) {
		assert.True(t, goerrors.Is(err, cause))
	})
}

func TestScalar(t *testing.T) {
	t.Run("should return the single value", func(t *testing.T) {
		value, err := Scalar(fakeResults("logical"))

		assert.NoError(t, err)
		assert.Equal(t, "logical", value)
	})

	t.Run("should fail on empty result set", func(t *testing.T) {
		_, err := Scalar(fakeResults())

		assert.Error(t, err)
	})
}
