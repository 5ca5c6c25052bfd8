package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	dims int
	vecs [][]float32
}

func (f *fixedProvider) Name() string    { return "fixed" }
func (f *fixedProvider) Dimensions() int { return f.dims }

func (f *fixedProvider) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return f.vecs, nil
}

func TestWrapToDimsPassThrough(t *testing.T) {
	base := &fixedProvider{dims: 4}

	assert.Same(t, base, WrapToDims(base, 4).(*fixedProvider))
	assert.Same(t, base, WrapToDims(base, 0).(*fixedProvider))
	assert.Nil(t, WrapToDims(nil, 4))
}

func TestWrapToDimsResizes(t *testing.T) {
	base := &fixedProvider{dims: 2, vecs: [][]float32{
		{1, 2},
		{1, 2, 3, 4, 5, 6},
	}}

	adapted := WrapToDims(base, 4)
	assert.Equal(t, 4, adapted.Dimensions())
	assert.Equal(t, "fixed", adapted.Name())

	vecs, err := adapted.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 2, 0, 0}, vecs[0])
	assert.Equal(t, []float32{1, 2, 3, 4}, vecs[1])
}
