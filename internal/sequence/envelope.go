package sequence

import "sort"

func linear(x float64) float64 { return x }

var eases = map[Ease]func(float64) float64{
	"":         linear,
	EaseLinear: linear,
	EaseSmooth: func(x float64) float64 { return x * x * (3 - 2*x) },
	EaseCubic:  func(x float64) float64 { return x * x * x * (x*(x*6-15) + 10) },
	EaseStep:   func(float64) float64 { return 0 },
}

// Known reports whether e names a supported easing.
func (e Ease) Known() bool {
	_, ok := eases[e]
	return ok
}

// Eval interpolates the envelope at clip time t. Before the first key and
// after the last the end values hold; an empty envelope is 0.
func (e Envelope) Eval(t float64) float64 {
	k := e.Keys
	switch {
	case len(k) == 0:
		return 0
	case t <= k[0].T:
		return k[0].V
	case t >= k[len(k)-1].T:
		return k[len(k)-1].V
	}
	// first key strictly after t; k[0].T < t < k[n-1].T keeps i in [1, n-1]
	i := sort.Search(len(k), func(i int) bool { return k[i].T > t })
	a, b := k[i-1], k[i]
	f, ok := eases[a.Ease]
	if !ok {
		f = linear
	}
	return a.V + (b.V-a.V)*f((t-a.T)/(b.T-a.T))
}

// On thresholds the envelope at 0.5.
func (e Envelope) On(t float64) bool { return e.Eval(t) >= 0.5 }
