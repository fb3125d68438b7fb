package sequence

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

// Config describes the network shape and optimizer settings.
type Config struct {
	SeqLength    int
	Hidden       int
	LearningRate float64
	ClipNorm     float64
	Seed         int64
}

// DefaultConfig mirrors a single LSTM(50) + Dense(1) trained with Adam.
func DefaultConfig() Config {
	return Config{
		SeqLength:    30,
		Hidden:       50,
		LearningRate: 0.001,
		ClipNorm:     5.0,
		Seed:         42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SeqLength <= 0 {
		c.SeqLength = d.SeqLength
	}
	if c.Hidden <= 0 {
		c.Hidden = d.Hidden
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.ClipNorm <= 0 {
		c.ClipNorm = d.ClipNorm
	}
	return c
}

const defaultBatchSize = 32

// LSTM is a one-layer, one-feature recurrent regressor with a dense head.
// All trainable parameters live in theta:
//
//	kernel           [4H]     input weights, gate order i f g o
//	recurrent kernel [H*4H]   row k holds the weights from h[k]
//	bias             [4H]
//	dense kernel     [H]
//	dense bias       [1]
type LSTM struct {
	cfg   Config
	theta []float64
	adam  *adam
	meta  models.ModelMeta
}

var _ service.SequenceModel = (*LSTM)(nil)

// New builds an untrained network with Glorot-uniform weights drawn from a
// seeded source, so equal configs give equal models.
func New(cfg Config) *LSTM {
	cfg = cfg.withDefaults()
	m := &LSTM{cfg: cfg, theta: make([]float64, paramCount(cfg.Hidden))}
	m.init(rand.New(rand.NewSource(cfg.Seed)))
	m.adam = newAdam(len(m.theta), cfg.LearningRate)
	return m
}

// Factory returns a ModelFactory producing fresh networks for cfg.
func Factory(cfg Config) service.ModelFactory {
	return func() service.SequenceModel { return New(cfg) }
}

func paramCount(h int) int { return 4*h + 4*h*h + 4*h + h + 1 }

// offsets into theta
func (m *LSTM) layout() (kernel, recurrent, bias, dense, denseBias int) {
	h := m.cfg.Hidden
	kernel = 0
	recurrent = 4 * h
	bias = recurrent + 4*h*h
	dense = bias + 4*h
	denseBias = dense + h
	return
}

func (m *LSTM) init(rng *rand.Rand) {
	h := m.cfg.Hidden
	k, r, b, d, _ := m.layout()
	glorot := func(dst []float64, fanIn, fanOut int) {
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := range dst {
			dst[i] = (rng.Float64()*2 - 1) * limit
		}
	}
	glorot(m.theta[k:r], 1, 4*h)
	glorot(m.theta[r:b], h, 4*h)
	// forget gate bias starts at one
	for j := h; j < 2*h; j++ {
		m.theta[b+j] = 1
	}
	glorot(m.theta[d:d+h], h, 1)
}

func (m *LSTM) SeqLength() int { return m.cfg.SeqLength }

func (m *LSTM) Hidden() int { return m.cfg.Hidden }

func (m *LSTM) Meta() models.ModelMeta { return m.meta }

func (m *LSTM) SetMeta(meta models.ModelMeta) { m.meta = meta }

// step holds the activations of one timestep, kept for backpropagation.
type step struct {
	x           float64
	hPrev       []float64
	cPrev       []float64
	i, f, g, o  []float64
	c, tanhC, h []float64
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// forward runs one window and returns the output plus the per-step trace
// when keep is set.
func (m *LSTM) forward(window []float64, keep bool) (float64, []step) {
	hd := m.cfg.Hidden
	k, r, b, d, db := m.layout()
	wx := m.theta[k:r]
	wh := m.theta[r:b]
	bias := m.theta[b:d]

	h := make([]float64, hd)
	c := make([]float64, hd)
	z := make([]float64, 4*hd)
	var trace []step
	if keep {
		trace = make([]step, 0, len(window))
	}

	for _, x := range window {
		for j := range z {
			z[j] = wx[j]*x + bias[j]
		}
		for kk, hv := range h {
			if hv == 0 {
				continue
			}
			row := wh[kk*4*hd : (kk+1)*4*hd]
			for j, w := range row {
				z[j] += hv * w
			}
		}

		st := step{
			x:     x,
			hPrev: h,
			cPrev: c,
			i:     make([]float64, hd),
			f:     make([]float64, hd),
			g:     make([]float64, hd),
			o:     make([]float64, hd),
			c:     make([]float64, hd),
			tanhC: make([]float64, hd),
			h:     make([]float64, hd),
		}
		for u := 0; u < hd; u++ {
			st.i[u] = sigmoid(z[u])
			st.f[u] = sigmoid(z[hd+u])
			st.g[u] = math.Tanh(z[2*hd+u])
			st.o[u] = sigmoid(z[3*hd+u])
			st.c[u] = st.f[u]*c[u] + st.i[u]*st.g[u]
			st.tanhC[u] = math.Tanh(st.c[u])
			st.h[u] = st.o[u] * st.tanhC[u]
		}
		h, c = st.h, st.c
		if keep {
			trace = append(trace, st)
		}
	}

	y := m.theta[db]
	for u, w := range m.theta[d:db] {
		y += w * h[u]
	}
	return y, trace
}

// backward accumulates into grad the gradient of dy*y for one traced window.
func (m *LSTM) backward(trace []step, dy float64, grad []float64) {
	hd := m.cfg.Hidden
	k, r, b, d, db := m.layout()
	wh := m.theta[r:b]
	wy := m.theta[d:db]

	last := trace[len(trace)-1]
	for u := 0; u < hd; u++ {
		grad[d+u] += dy * last.h[u]
	}
	grad[db] += dy

	dh := make([]float64, hd)
	dc := make([]float64, hd)
	for u := range dh {
		dh[u] = dy * wy[u]
	}
	dz := make([]float64, 4*hd)

	for t := len(trace) - 1; t >= 0; t-- {
		st := trace[t]
		for u := 0; u < hd; u++ {
			o, tc := st.o[u], st.tanhC[u]
			dc[u] += dh[u] * o * (1 - tc*tc)
			dz[3*hd+u] = dh[u] * tc * o * (1 - o)
			dz[u] = dc[u] * st.g[u] * st.i[u] * (1 - st.i[u])
			dz[hd+u] = dc[u] * st.cPrev[u] * st.f[u] * (1 - st.f[u])
			dz[2*hd+u] = dc[u] * st.i[u] * (1 - st.g[u]*st.g[u])
		}
		for j, g := range dz {
			grad[k+j] += g * st.x
			grad[b+j] += g
		}
		for kk := 0; kk < hd; kk++ {
			row := wh[kk*4*hd : (kk+1)*4*hd]
			grow := grad[r+kk*4*hd : r+(kk+1)*4*hd]
			hp := st.hPrev[kk]
			var acc float64
			for j, g := range dz {
				grow[j] += hp * g
				acc += row[j] * g
			}
			dh[kk] = acc
		}
		for u := 0; u < hd; u++ {
			dc[u] *= st.f[u]
		}
	}
}

func (m *LSTM) checkWindows(windows [][]float64) error {
	for i, w := range windows {
		if len(w) != m.cfg.SeqLength {
			return fmt.Errorf("window %d has length %d, model expects %d: %w", i, len(w), m.cfg.SeqLength, models.ErrShapeMismatch)
		}
	}
	return nil
}

// Train fits the network with mini-batch Adam over the windows in their given
// (chronological) order. ctx is checked between batches.
func (m *LSTM) Train(ctx context.Context, windows [][]float64, targets []float64, epochs, batchSize int) (models.TrainReport, error) {
	report := models.TrainReport{Windows: len(windows)}
	if len(windows) != len(targets) {
		return report, fmt.Errorf("%d windows vs %d targets: %w", len(windows), len(targets), models.ErrShapeMismatch)
	}
	if len(windows) == 0 {
		return report, fmt.Errorf("no training windows: %w", models.ErrInsufficientData)
	}
	if err := m.checkWindows(windows); err != nil {
		return report, err
	}
	if epochs < 1 {
		epochs = 1
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	grad := make([]float64, len(m.theta))
	for e := 0; e < epochs; e++ {
		var sse float64
		for start := 0; start < len(windows); start += batchSize {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			end := min(start+batchSize, len(windows))
			clear(grad)
			n := float64(end - start)
			for i := start; i < end; i++ {
				y, trace := m.forward(windows[i], true)
				diff := y - targets[i]
				sse += diff * diff
				m.backward(trace, 2*diff/n, grad)
			}
			clipNorm(grad, m.cfg.ClipNorm)
			m.adam.step(m.theta, grad)
		}
		loss := sse / float64(len(windows))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return report, fmt.Errorf("training diverged at epoch %d", e+1)
		}
		report.Losses = append(report.Losses, loss)
		report.Epochs = e + 1
	}
	return report, nil
}

// Predict returns one scaled output per window.
func (m *LSTM) Predict(windows [][]float64) ([]float64, error) {
	if err := m.checkWindows(windows); err != nil {
		return nil, err
	}
	out := make([]float64, len(windows))
	for i, w := range windows {
		out[i], _ = m.forward(w, false)
	}
	return out, nil
}

func clipNorm(grad []float64, maxNorm float64) {
	var sq float64
	for _, g := range grad {
		sq += g * g
	}
	norm := math.Sqrt(sq)
	if norm <= maxNorm || norm == 0 {
		return
	}
	scale := maxNorm / norm
	for i := range grad {
		grad[i] *= scale
	}
}
