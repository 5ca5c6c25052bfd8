package embeddings

import "context"

// dimsAdapter reconciles a provider's native dimensionality with the fixed
// dimensionality of the unit store: short vectors are zero-padded, long ones
// cut. Every vector in one store must have the same length, so there is no
// configurable policy here.
type dimsAdapter struct {
	base Provider
	dims int
}

// WrapToDims coerces base's vectors to targetDims. A nil provider, a
// non-positive target, or a provider that already matches is returned as is.
func WrapToDims(base Provider, targetDims int) Provider {
	if base == nil || targetDims <= 0 || base.Dimensions() == targetDims {
		return base
	}
	return &dimsAdapter{base: base, dims: targetDims}
}

func (a *dimsAdapter) Name() string    { return a.base.Name() }
func (a *dimsAdapter) Dimensions() int { return a.dims }

func (a *dimsAdapter) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := a.base.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		vecs[i] = a.resize(v)
	}
	return vecs, nil
}

func (a *dimsAdapter) resize(v []float32) []float32 {
	if len(v) == a.dims {
		return v
	}
	if len(v) > a.dims {
		return v[:a.dims]
	}
	out := make([]float32, a.dims)
	copy(out, v)
	return out
}
