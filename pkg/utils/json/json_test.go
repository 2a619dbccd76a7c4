package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkBlob struct {
	Chunks []struct {
		ID        string         `json:"id"`
		Text      string         `json:"text"`
		Embedding []float32      `json:"embedding"`
		Metadata  map[string]any `json:"metadata"`
	} `json:"chunks"`
}

func TestRoundTripKeepsFloat32Precision(t *testing.T) {
	in := []byte(`{"chunks":[{"id":"d1_chunk_0","text":"hello","embedding":[0.1,0.25,-1],"metadata":{"category":"cardiology"}}]}`)

	var blob chunkBlob
	require.NoError(t, Unmarshal(in, &blob))
	require.Len(t, blob.Chunks, 1)
	assert.Equal(t, []float32{0.1, 0.25, -1}, blob.Chunks[0].Embedding)
	assert.Equal(t, "cardiology", blob.Chunks[0].Metadata["category"])

	out, err := Marshal(blob)
	require.NoError(t, err)

	var again chunkBlob
	require.NoError(t, Unmarshal(out, &again))
	assert.Equal(t, blob, again)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"total": 2}))

	var got map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	assert.Equal(t, 2, got["total"])
}

func TestUnmarshalInvalid(t *testing.T) {
	var v map[string]any
	assert.Error(t, Unmarshal([]byte(`{"a":`), &v))
}

func TestBothCodecsAgreeOnChunkBlob(t *testing.T) {
	in := []byte(`{"chunks":[{"id":"u1_chunk_2","text":"t","embedding":[0.5,-0.125],"metadata":{"source_type":"url"}}]}`)
	for _, arch := range []string{"amd64", "riscv64"} {
		t.Run(arch, func(t *testing.T) {
			c := pick(arch)
			var blob chunkBlob
			require.NoError(t, c.Unmarshal(in, &blob))
			assert.Equal(t, []float32{0.5, -0.125}, blob.Chunks[0].Embedding)
			assert.Equal(t, "url", blob.Chunks[0].Metadata["source_type"])
		})
	}
}
