package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func wordText(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString(fmt.Sprintf("w%03d ", i%1000))
	}
	return b.String()[:n]
}

func runeHead(s string, n int) string {
	return string([]rune(s)[:n])
}

func runeTail(s string, n int) string {
	r := []rune(s)
	return string(r[len(r)-n:])
}

func TestSplitEmpty(t *testing.T) {
	require.Empty(t, New().Split(""))
	require.Empty(t, New().Split(" \n\n "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := New().Split("hello world")
	require.Len(t, chunks, 1)
	require.Equal(t, "hello world", chunks[0].Text)
	require.Equal(t, 0, chunks[0].Index)
}

func TestSplitFiveThousandChars(t *testing.T) {
	inputs := map[string]string{
		"no separators": strings.Repeat("abcdefghij", 500),
		"words":         wordText(5000),
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, 5000, len(text))
			chunks := Split(text, 2000, 200, DefaultSeparators)
			require.Len(t, chunks, 3)
			require.Equal(t, runeTail(chunks[0].Text, 200), runeHead(chunks[1].Text, 200))
			require.Equal(t, runeTail(chunks[1].Text, 200), runeHead(chunks[2].Text, 200))
			for i, c := range chunks {
				require.Equal(t, i, c.Index)
				require.LessOrEqual(t, utf8.RuneCountInString(c.Text), 2000)
			}
		})
	}
}

func TestSplitCoversTextInOrder(t *testing.T) {
	text := strings.Repeat("paragraph one line\nsecond line here\n\n", 200)
	c := New(WithMaxSize(300), WithOverlap(50))
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for i, ch := range chunks {
		body := ch.Text
		if i > 0 {
			require.Equal(t, runeTail(chunks[i-1].Text, 50), runeHead(ch.Text, 50))
			body = string([]rune(ch.Text)[50:])
		}
		rebuilt.WriteString(body)
	}
	require.Equal(t, text, rebuilt.String())
}

func TestSplitPrefersCoarseSeparators(t *testing.T) {
	para := strings.Repeat("x", 80)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := Split(text, 100, 0, DefaultSeparators)
	require.Len(t, chunks, 3)
	require.Equal(t, para+"\n\n", chunks[0].Text)
	require.Equal(t, para, chunks[2].Text)
}

func TestSplitDeterministic(t *testing.T) {
	text := wordText(12345)
	first := Split(text, 700, 70, DefaultSeparators)
	second := Split(text, 700, 70, DefaultSeparators)
	require.Equal(t, first, second)
}

func TestSplitMultibyte(t *testing.T) {
	text := strings.Repeat("数据块", 1000)
	chunks := Split(text, 500, 50, DefaultSeparators)
	require.NotEmpty(t, chunks)
	for i := 1; i < len(chunks); i++ {
		require.True(t, utf8.ValidString(chunks[i].Text))
		require.Equal(t, runeTail(chunks[i-1].Text, 50), runeHead(chunks[i].Text, 50))
	}
}

func TestNewNormalisesOptions(t *testing.T) {
	c := New(WithMaxSize(0), WithOverlap(-1), WithSeparators(nil))
	require.Equal(t, DefaultMaxSize, c.MaxSize())
	require.Equal(t, 0, c.Overlap())

	c = New(WithMaxSize(100), WithOverlap(100))
	require.Equal(t, 25, c.Overlap())
}
