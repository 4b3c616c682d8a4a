package catalog

import "github.com/bits-and-blooms/bloom/v3"

const (
	minFilterCapacity = 1024
	filterFalseRate   = 0.01
)

// keywordFilter is a bloom filter over every keyword in the catalog. It lets
// selection skip the scan when none of the query tokens was ever indexed.
// Keywords are only ever added, so it never yields false negatives.
type keywordFilter struct {
	bf       *bloom.BloomFilter
	capacity uint
	count    uint
}

func newKeywordFilter(expected uint) *keywordFilter {
	capacity := expected * 2
	if capacity < minFilterCapacity {
		capacity = minFilterCapacity
	}
	return &keywordFilter{
		bf:       bloom.NewWithEstimates(capacity, filterFalseRate),
		capacity: capacity,
	}
}

func (f *keywordFilter) add(tokens []string) {
	for _, t := range tokens {
		f.bf.AddString(t)
		f.count++
	}
}

// full reports whether adding n more tokens would exceed the sizing estimate.
func (f *keywordFilter) full(n int) bool {
	return f.count+uint(n) > f.capacity
}

func (f *keywordFilter) testAny(tokens []string) bool {
	for _, t := range tokens {
		if f.bf.TestString(t) {
			return true
		}
	}
	return false
}
