package integrators

import "github.com/san-kum/orbprop/internal/dynamo"

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// dense output (Hairer, contd5)
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// DormandPrince is the embedded 5(4) pair with first-same-as-last stages.
type DormandPrince struct{}

func (DormandPrince) name() string { return "dopri5" }
func (DormandPrince) order() int   { return 5 }

func (DormandPrince) attempt(sys dynamo.System, t0 float64, y0, k1 dynamo.State, h float64) (trial, error) {
	k2, err := sys.Derive(t0+a2*h, axpy(y0, h, stage{b21, k1}))
	if err != nil {
		return trial{}, err
	}
	k3, err := sys.Derive(t0+a3*h, axpy(y0, h, stage{b31, k1}, stage{b32, k2}))
	if err != nil {
		return trial{}, err
	}
	k4, err := sys.Derive(t0+a4*h, axpy(y0, h, stage{b41, k1}, stage{b42, k2}, stage{b43, k3}))
	if err != nil {
		return trial{}, err
	}
	k5, err := sys.Derive(t0+a5*h, axpy(y0, h, stage{b51, k1}, stage{b52, k2}, stage{b53, k3}, stage{b54, k4}))
	if err != nil {
		return trial{}, err
	}
	k6, err := sys.Derive(t0+h, axpy(y0, h, stage{b61, k1}, stage{b62, k2}, stage{b63, k3}, stage{b64, k4}, stage{b65, k5}))
	if err != nil {
		return trial{}, err
	}

	y1 := axpy(y0, h, stage{c1, k1}, stage{c3, k3}, stage{c4, k4}, stage{c5, k5}, stage{c6, k6})

	k7, err := sys.Derive(t0+h, y1)
	if err != nil {
		return trial{}, err
	}

	n := len(y0)
	errEst := make(dynamo.State, n)
	r5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		errEst[i] = h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		r5[i] = h * (d1*k1[i] + d3*k3[i] + d4*k4[i] + d5*k5[i] + d6*k6[i] + d7*k7[i])
	}

	return trial{
		y1:     y1,
		f1:     k7,
		errEst: errEst,
		interp: newDopriInterpolator(t0, h, y0, y1, k1, k7, r5),
	}, nil
}

// NewDormandPrince returns an adaptive Dormand-Prince 5(4) integrator.
func NewDormandPrince(cfg dynamo.Config) *Integrator {
	return &Integrator{
		cfg:      cfg,
		method:   DormandPrince{},
		adaptive: true,
		ctrl: stepScale{
			safety:   0.9,
			minScale: 0.2,
			maxScale: 10.0,
		},
	}
}
