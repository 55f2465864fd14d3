package jobs

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	require.Equal(t, "", sanitizeError(nil))
	require.Equal(t, "line one line two", sanitizeError(errors.New(" line one\r\nline two\n")))

	// A two byte rune straddles the limit.
	long := strings.Repeat("a", 499) + "é trailing"
	got := sanitizeError(errors.New(long))
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), 500)
	require.Equal(t, strings.Repeat("a", 499), got)

	got = sanitizeError(errors.New(strings.Repeat("ü", 400)))
	require.True(t, utf8.ValidString(got))
	require.Len(t, got, 500)
}
