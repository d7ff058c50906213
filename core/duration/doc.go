// Package duration provides length-of-stay samplers. A Sampler draws stay
// durations from some distribution; Bootstrap resamples an observed pool of
// historical stays with replacement, without assuming a parametric form.
package duration
