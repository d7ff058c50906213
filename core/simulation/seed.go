package simulation

import "math/rand/v2"

const golden = 0x9e3779b97f4a7c15

// mix64 is the SplitMix64 finalizer. It is a bijection on uint64.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// roundSeed derives the two PCG seed words of a round. Both words are
// consecutive outputs of a SplitMix64 stream keyed by the base seed, at
// positions 2*round and 2*round+1, so distinct rounds never share a state.
func roundSeed(base int64, round int) (uint64, uint64) {
	s := mix64(uint64(base))
	pos := uint64(round) * 2
	return mix64(s + (pos+1)*golden), mix64(s + (pos+2)*golden)
}

// roundRand returns the random source of a round.
func roundRand(base int64, round int) *rand.Rand {
	hi, lo := roundSeed(base, round)
	return rand.New(rand.NewPCG(hi, lo))
}
