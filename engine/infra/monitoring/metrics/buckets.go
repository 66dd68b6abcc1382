package metrics

// QueryLatencyBuckets covers index round trips from a local collection to a remote database.
var QueryLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// GenerationLatencyBuckets covers chat completion calls, web search included.
var GenerationLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
