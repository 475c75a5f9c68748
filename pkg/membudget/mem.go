package membudget

// DefaultMemoryBytes is assumed when system RAM cannot be detected.
const DefaultMemoryBytes uint64 = 4 << 30
