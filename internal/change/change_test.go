package change

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trailing spaces per line", in: "a  \nb\t\n", want: "a\nb"},
		{name: "leading whitespace kept inside", in: "\n\n  a\n  b  \n\n", want: "a\n  b"},
		{name: "crlf", in: "a\r\nb\r\n", want: "a\nb"},
		{name: "bare cr", in: "a\rb", want: "a\nb"},
		{name: "empty", in: "", want: ""},
		{name: "only whitespace", in: " \n\t\n ", want: ""},
		{name: "inner blank lines kept", in: "a\n\n\nb", want: "a\n\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Hello\nWorld",
		"  padded  \r\n\tlines\t\r\n\r\n",
		" nbsp \n",
		"a\n \n b \n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestHasChanged(t *testing.T) {
	t.Parallel()

	assert.False(t, HasChanged("Hello\nWorld", "Hello   \nWorld\n\n"))
	assert.False(t, HasChanged("", "   "))
	assert.True(t, HasChanged("A", "B"))
	assert.True(t, HasChanged("a\nb", "b\na"), "reordering is a change")
	assert.True(t, HasChanged("", "first run"))
}

func TestUnifiedDiffFormat(t *testing.T) {
	t.Parallel()

	diff, err := UnifiedDiff("A", "B", PreviousLabel, CurrentLabel)
	require.NoError(t, err)

	lines := strings.Split(diff, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[0], "--- previous"))
	assert.True(t, strings.HasPrefix(lines[1], "+++ current"))
	assert.True(t, strings.HasPrefix(lines[2], "@@ "))
	assert.Contains(t, lines, "-A")
	assert.Contains(t, lines, "+B")
}

func TestUnifiedDiffReversedPolarity(t *testing.T) {
	t.Parallel()

	a := "one\ntwo\nthree"
	b := "one\n2\nthree\nfour"

	forward, err := UnifiedDiff(a, b, "a", "b")
	require.NoError(t, err)
	backward, err := UnifiedDiff(b, a, "b", "a")
	require.NoError(t, err)
	require.NotEmpty(t, forward)
	require.NotEmpty(t, backward)

	assert.Equal(t, hunkLines(forward, '-'), hunkLines(backward, '+'))
	assert.Equal(t, hunkLines(forward, '+'), hunkLines(backward, '-'))
	assert.Contains(t, hunkLines(forward, '+'), "four")
}

func TestUnifiedDiffContextAndEmptySide(t *testing.T) {
	t.Parallel()

	diff, err := UnifiedDiff("", "new\ncontent", PreviousLabel, CurrentLabel)
	require.NoError(t, err)
	assert.Contains(t, diff, "@@ -0,0 +1,2 @@")
	assert.Contains(t, diff, "+new\n")

	same, err := UnifiedDiff("x", "x", PreviousLabel, CurrentLabel)
	require.NoError(t, err)
	assert.Empty(t, same)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	res, err := Compare("Hello\nWorld", "Hello  \nWorld  \n")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Diff)
	assert.Equal(t, "Hello\nWorld", res.Current)

	res, err = Compare("A", "B\n")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Diff, "-A\n")
	assert.Contains(t, res.Diff, "+B\n")
	assert.Equal(t, "B", res.Current)
}

// hunkLines returns the bodies of diff lines carrying prefix, excluding the
// ---/+++ file headers.
func hunkLines(diff string, prefix byte) []string {
	var out []string
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		if len(line) > 0 && line[0] == prefix {
			out = append(out, line[1:])
		}
	}
	return out
}
