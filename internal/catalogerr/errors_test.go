package catalogerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	t.Run("MapsKnownSentinels", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{ErrNotFound, 404},
			{ErrConflict, 409},
			{ErrBadRequest, 400},
			{ErrUnauthorized, 401},
			{ErrForbidden, 403},
			{ErrPayloadTooLarge, 413},
			{ErrInternal, 500},
		}
		for _, c := range cases {
			assert.Equal(t, c.want, Status(c.err))
		}
	})

	t.Run("UnknownErrorDefaultsTo500", func(t *testing.T) {
		assert.Equal(t, 500, Status(errors.New("boom")))
	})

	t.Run("MatchesThroughWrapping", func(t *testing.T) {
		wrapped := Wrap("upload", "repo-1", "a/b", ErrPayloadTooLarge)
		assert.Equal(t, 413, Status(wrapped))
		assert.True(t, errors.Is(wrapped, ErrPayloadTooLarge))
	})
}

func TestWrap(t *testing.T) {
	t.Run("NilErrorReturnsNil", func(t *testing.T) {
		assert.Nil(t, Wrap("op", "repo", "path", nil))
	})

	t.Run("PreservesContextInMessage", func(t *testing.T) {
		err := Wrap("delete", "repo-1", "a/b.txt", ErrNotFound)
		assert.Contains(t, err.Error(), "repo-1")
		assert.Contains(t, err.Error(), "a/b.txt")
	})
}
