package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMediaType(t *testing.T) {
	assert.Equal(t, "application/pdf", NormalizeMediaType("Application/PDF; charset=binary"))
	assert.Equal(t, "text/plain", NormalizeMediaType(" text/plain "))
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7\n...")))
	assert.True(t, LooksLikePDF([]byte("\xef\xbb\xbf%PDF-1.4")))
	assert.False(t, LooksLikePDF([]byte("PK\x03\x04 zip")))
	assert.False(t, LooksLikePDF(nil))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusDone.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
