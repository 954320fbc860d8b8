// Package registry keeps the set of live routines behind one of three
// storage strategies, chosen once at construction:
//   - fixed_array: preallocated slots, fails with ErrCapacityExceeded when full
//   - unique_set: hash set, no ordering
//   - ordered_list: insertion-ordered slice
//
// Lookups by name or owner are linear filters in every strategy.
package registry
