package pool

import "github.com/tidwall/btree"

// entry is the bookkeeping record for one pooled value. stamp is only
// mutated while the entry is outside the free indices.
type entry[K comparable, T comparable] struct {
	key   K
	value T
	size  uint64
	stamp uint64
}

func stampLess[K comparable, T comparable](a, b *entry[K, T]) bool {
	return a.stamp < b.stamp
}

func newStampTree[K comparable, T comparable]() *btree.BTreeG[*entry[K, T]] {
	return btree.NewBTreeGOptions(stampLess[K, T], btree.Options{NoLocks: true})
}

// freeIndex holds every free entry twice: once under its key and once in the
// global recency order. insert and remove are the only mutators.
type freeIndex[K comparable, T comparable] struct {
	byKey map[K]*btree.BTreeG[*entry[K, T]]
	byAge *btree.BTreeG[*entry[K, T]]
}

func newFreeIndex[K comparable, T comparable]() *freeIndex[K, T] {
	return &freeIndex[K, T]{
		byKey: make(map[K]*btree.BTreeG[*entry[K, T]]),
		byAge: newStampTree[K, T](),
	}
}

func (f *freeIndex[K, T]) insert(e *entry[K, T]) {
	tree, ok := f.byKey[e.key]
	if !ok {
		tree = newStampTree[K, T]()
		f.byKey[e.key] = tree
	}
	tree.Set(e)
	f.byAge.Set(e)
}

func (f *freeIndex[K, T]) remove(e *entry[K, T]) bool {
	tree, ok := f.byKey[e.key]
	if !ok {
		return false
	}
	if _, found := tree.Delete(e); !found {
		return false
	}
	if tree.Len() == 0 {
		delete(f.byKey, e.key)
	}
	f.byAge.Delete(e)
	return true
}

// contains reports whether e itself is indexed as free under its key.
func (f *freeIndex[K, T]) contains(e *entry[K, T]) bool {
	tree, ok := f.byKey[e.key]
	if !ok {
		return false
	}
	got, found := tree.Get(e)
	return found && got == e
}

// takeOldest removes and returns the free entry for key with the smallest stamp.
func (f *freeIndex[K, T]) takeOldest(key K) (*entry[K, T], bool) {
	tree, ok := f.byKey[key]
	if !ok {
		return nil, false
	}
	e, ok := tree.Min()
	if !ok {
		return nil, false
	}
	f.remove(e)
	return e, true
}

// oldest returns the free entry with the globally smallest stamp.
func (f *freeIndex[K, T]) oldest() (*entry[K, T], bool) {
	return f.byAge.Min()
}

func (f *freeIndex[K, T]) len() int {
	return f.byAge.Len()
}

func (f *freeIndex[K, T]) keys() int {
	return len(f.byKey)
}

// snapshot returns the free entries in ascending stamp order.
func (f *freeIndex[K, T]) snapshot() []*entry[K, T] {
	return f.byAge.Items()
}
