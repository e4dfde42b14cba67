package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"brief.pdf":            "drf_1/evd_1/brief.pdf",
		"../../etc/passwd":     "drf_1/evd_1/passwd",
		`C:\Users\a\notes.txt`: "drf_1/evd_1/notes.txt",
		"":                     "drf_1/evd_1/file",
	}
	for name, want := range cases {
		assert.Equal(t, want, ObjectKey("drf_1", "evd_1", name), name)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	store, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "draft-evidence"})
	require.NoError(t, err)
	assert.Equal(t, "draft-evidence", store.bucket)
}
