package metrics

// RequestSecondsBuckets covers everything from a short phrase on a warm GPU
// to a long paragraph on CPU.
var RequestSecondsBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120, 300}
