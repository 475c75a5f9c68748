package benchutil

// BenchmarkSeed is the default seed for reproducible benchmark data.
const BenchmarkSeed = 42

// GridSizes are the square raster edge lengths used by quick benchmarks.
var GridSizes = []int{64, 256, 1024}

// ScalingSteps are time-series lengths for GEOHARVEST_LONG_BENCH runs.
var ScalingSteps = []int{30, 365, 3650}
