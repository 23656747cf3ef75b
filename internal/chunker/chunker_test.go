package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("explicit values", func(t *testing.T) {
		c := New(700, 200)
		assert.Equal(t, 700, c.Size())
		assert.Equal(t, 200, c.Overlap())
	})

	t.Run("overlap clamped to a quarter", func(t *testing.T) {
		c := New(100, 100)
		assert.Equal(t, 25, c.Overlap())

		c = New(100, 500)
		assert.Equal(t, 25, c.Overlap())
	})

	t.Run("non-positive size selects defaults", func(t *testing.T) {
		c := New(0, 50)
		assert.Equal(t, DefaultSize, c.Size())
		assert.Equal(t, DefaultOverlap, c.Overlap())
	})

	t.Run("negative overlap", func(t *testing.T) {
		c := New(10, -3)
		assert.Equal(t, 0, c.Overlap())
	})
}

func TestChunks_ShortText(t *testing.T) {
	c := New(10, 2)

	chunks := c.Split("short")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Text)
	assert.False(t, c.NeedsSplit("short"))

	exact := strings.Repeat("x", 10)
	chunks = c.Split(exact)
	require.Len(t, chunks, 1)
	assert.Equal(t, exact, chunks[0].Text)
	assert.False(t, c.NeedsSplit(exact))

	chunks = c.Split("")
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Text)
}

func TestChunks_WindowLaw(t *testing.T) {
	sizes := []struct{ size, overlap, length int }{
		{10, 2, 11},
		{10, 2, 95},
		{700, 200, 5000},
		{7, 0, 50},
		{5, 4, 23},
	}

	for _, s := range sizes {
		c := New(s.size, s.overlap)
		text := alphabet(s.length)
		runes := []rune(text)
		chunks := c.Split(text)

		require.True(t, c.NeedsSplit(text))
		require.Greater(t, len(chunks), 1)

		for k, ch := range chunks {
			assert.Equal(t, k, ch.Index)
			assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), s.size)
			assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)

			if k > 0 {
				prev := chunks[k-1]
				assert.Equal(t, prev.End-s.overlap, ch.Start, "chunk %d must start overlap before previous end", k)
			}
		}

		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len(runes), chunks[len(chunks)-1].End)
		for _, ch := range chunks[:len(chunks)-1] {
			assert.Less(t, ch.End, len(runes), "only the last chunk may reach the end")
		}
	}
}

func TestChunks_Unicode(t *testing.T) {
	c := New(5, 1)
	text := "🚀日本語テキスト🎉émoji"
	chunks := c.Split(text)

	var rebuilt []rune
	for i, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text))
		r := []rune(ch.Text)
		if i > 0 {
			r = r[1:]
		}
		rebuilt = append(rebuilt, r...)
	}
	assert.Equal(t, text, string(rebuilt))
}

func TestChunks_Restartable(t *testing.T) {
	c := New(4, 1)
	seq := c.Chunks("abcdefghijklmnop")

	var first, second []string
	for ch := range seq {
		first = append(first, ch.Text)
	}
	for ch := range seq {
		second = append(second, ch.Text)
	}
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "jklm", "mnop"}, first)
}

func TestChunks_EarlyStop(t *testing.T) {
	c := New(4, 1)
	count := 0
	for range c.Chunks("abcdefghijklmnop") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func alphabet(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}
