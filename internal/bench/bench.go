// Package bench holds the reference algorithms used as translation fixtures
// and a small harness that times them. Each algorithm exists in several
// idiomatic variants so performance verification has known-good baselines to
// compare translated output against.
package bench

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// FibRecursive computes the nth Fibonacci number by naive recursion.
// Exponential time; kept as the pathological baseline.
func FibRecursive(n int) uint64 {
	if n < 2 {
		return uint64(n)
	}
	return FibRecursive(n-1) + FibRecursive(n-2)
}

// FibIterative computes the nth Fibonacci number in linear time.
func FibIterative(n int) uint64 {
	if n < 2 {
		return uint64(n)
	}
	a, b := uint64(0), uint64(1)
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// FibMemo computes the nth Fibonacci number with memoized recursion.
func FibMemo(n int) uint64 {
	memo := make(map[int]uint64, n)
	var fib func(int) uint64
	fib = func(k int) uint64 {
		if k < 2 {
			return uint64(k)
		}
		if v, ok := memo[k]; ok {
			return v
		}
		v := fib(k-1) + fib(k-2)
		memo[k] = v
		return v
	}
	return fib(n)
}

// QuicksortLomuto sorts in place using the Lomuto partition scheme.
func QuicksortLomuto(a []int) {
	if len(a) < 2 {
		return
	}
	pivot := a[len(a)-1]
	i := 0
	for j := 0; j < len(a)-1; j++ {
		if a[j] < pivot {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[len(a)-1] = a[len(a)-1], a[i]
	QuicksortLomuto(a[:i])
	QuicksortLomuto(a[i+1:])
}

// QuicksortHoare sorts in place using the Hoare partition scheme.
func QuicksortHoare(a []int) {
	if len(a) < 2 {
		return
	}
	pivot := a[len(a)/2]
	i, j := -1, len(a)
	for {
		for {
			i++
			if a[i] >= pivot {
				break
			}
		}
		for {
			j--
			if a[j] <= pivot {
				break
			}
		}
		if i >= j {
			break
		}
		a[i], a[j] = a[j], a[i]
	}
	QuicksortHoare(a[:j+1])
	QuicksortHoare(a[j+1:])
}

// BinarySearch returns the index of target in the sorted slice a, or -1.
func BinarySearch(a []int, target int) int {
	lo, hi := 0, len(a)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		switch {
		case a[mid] == target:
			return mid
		case a[mid] < target:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// SelectionSort sorts in place in quadratic time.
func SelectionSort(a []int) {
	for i := 0; i < len(a); i++ {
		min := i
		for j := i + 1; j < len(a); j++ {
			if a[j] < a[min] {
				min = j
			}
		}
		a[i], a[min] = a[min], a[i]
	}
}

// Result is one timed harness entry.
type Result struct {
	Algorithm  string `json:"algorithm"`
	Language   string `json:"language"`
	Iterations int    `json:"iterations"`
	NsPerOp    int64  `json:"ns_per_op"`
}

// Harness times the reference algorithms.
type Harness struct {
	// Iterations per algorithm. Zero means the default of 100.
	Iterations int
}

const defaultIterations = 100

// testInput returns a deterministic unsorted slice for the sort benchmarks.
func testInput(n int) []int {
	a := make([]int, n)
	seed := uint64(0x9E3779B97F4A7C15)
	for i := range a {
		seed = seed*6364136223846793005 + 1442695040888963407
		a[i] = int(seed % 100000)
	}
	return a
}

// Run times every reference algorithm and returns the results in a stable
// order. The language column is always "go"; rows for translated variants
// come from external runs recorded alongside these.
func (h *Harness) Run() []Result {
	iters := h.Iterations
	if iters <= 0 {
		iters = defaultIterations
	}

	entries := []struct {
		name string
		fn   func()
	}{
		{"fib_recursive", func() { FibRecursive(20) }},
		{"fib_iterative", func() { FibIterative(64) }},
		{"fib_memo", func() { FibMemo(64) }},
		{"quicksort_lomuto", func() {
			a := testInput(512)
			QuicksortLomuto(a)
		}},
		{"quicksort_hoare", func() {
			a := testInput(512)
			QuicksortHoare(a)
		}},
		{"binary_search", func() {
			a := testInput(512)
			sort.Ints(a)
			BinarySearch(a, a[256])
		}},
		{"selection_sort", func() {
			a := testInput(256)
			SelectionSort(a)
		}},
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		start := time.Now()
		for i := 0; i < iters; i++ {
			e.fn()
		}
		elapsed := time.Since(start)
		results = append(results, Result{
			Algorithm:  e.name,
			Language:   "go",
			Iterations: iters,
			NsPerOp:    elapsed.Nanoseconds() / int64(iters),
		})
	}
	return results
}

// MarshalResults renders results as an indented JSON document.
func MarshalResults(results []Result) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bench results: %w", err)
	}
	return string(data), nil
}
