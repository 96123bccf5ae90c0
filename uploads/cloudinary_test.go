package uploads

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_Sign(t *testing.T) {
	s := NewSigner("webnest", "key123", "secret")
	s.Now = func() time.Time { return time.Unix(1700000000, 0) }

	got, err := s.Sign(DeliverableFolder("p1"))
	require.NoError(t, err)

	// Cloudinary signs the sorted params joined with & followed by the secret
	sum := sha1.Sum([]byte("folder=webnest/deliverables/p1&timestamp=1700000000secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got.Signature)
	assert.Equal(t, int64(1700000000), got.Timestamp)
	assert.Equal(t, "https://api.cloudinary.com/v1_1/webnest/auto/upload", got.UploadURL)
}

func TestSigner_NotConfigured(t *testing.T) {
	_, err := NewSigner("", "", "").Sign("x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
