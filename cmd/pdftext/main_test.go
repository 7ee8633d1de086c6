package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/chunk"
	"github.com/joseph-ayodele/deeds-tracker/internal/ocr"
)

func TestPrintReport(t *testing.T) {
	chunkSize, chunkOverlap = 10, 2
	text := strings.Repeat("abcdefghij", 3)
	chunks, err := chunk.Split(text, chunkSize, chunkOverlap)
	require.NoError(t, err)

	var buf bytes.Buffer
	printReport(&buf, "ec.pdf", ocr.ExtractionResult{Text: text, Pages: 2, Method: ocr.MethodPDFText}, chunks)
	out := buf.String()

	assert.Contains(t, out, "pages:    2")
	assert.Contains(t, out, "chars:    30")
	assert.Contains(t, out, "chunks:   4 (size 10, overlap 2)")
	assert.Contains(t, out, "rejoin:   ok")
	assert.Equal(t, chunk.Count(30, 10, 2), len(chunks))
}

func TestPrintReport_FlagsBrokenRejoin(t *testing.T) {
	chunks := []chunk.Chunk{{Index: 0, Text: "abc"}}
	var buf bytes.Buffer
	printReport(&buf, "ec.pdf", ocr.ExtractionResult{Text: "abcd"}, chunks)
	assert.Contains(t, buf.String(), "rejoin:   MISMATCH")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 5))
	assert.Equal(t, "ab…", preview("abcdef", 2))
}

func TestRootCmd_RequiresOneArg(t *testing.T) {
	rootCmd.SetArgs([]string{})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	require.Error(t, rootCmd.Execute())
}
