// Package bptree implements an in-memory B+Tree with linked leaves for
// ordered range scans.
package bptree

import (
	"cmp"
	"slices"
	"sync"
)

// DefaultOrder is the fallback branching factor if a user-supplied order is too small.
const DefaultOrder = 4

// BPlusTree is an ordered map from K to V. It is safe for concurrent use:
// readers share a tree-wide lock and writers hold it exclusively.
type BPlusTree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	order  int
	height int
	size   int
	m      sync.RWMutex
}

// node represents both internal and leaf nodes in the B+Tree.
type node[K cmp.Ordered, V any] struct {
	isLeaf   bool
	keys     []K
	children []*node[K, V] // used if !isLeaf
	values   []V           // used if isLeaf
	parent   *node[K, V]
	next     *node[K, V] // leaf-link pointer, for range scans
}

// NewBPlusTree creates and returns a B+Tree with the given order.
// If the specified order < 3, we fall back to DefaultOrder.
func NewBPlusTree[K cmp.Ordered, V any](order int) *BPlusTree[K, V] {
	if order < 3 {
		order = DefaultOrder
	}
	return &BPlusTree[K, V]{
		root:   &node[K, V]{isLeaf: true},
		order:  order,
		height: 1,
	}
}

func (tree *BPlusTree[K, V]) Height() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.height
}

// Len returns the number of keys stored
func (tree *BPlusTree[K, V]) Len() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.size
}

// findChildIndex determines which child pointer to follow in an internal node.
// Keys equal to a separator live in the right subtree.
func findChildIndex[K cmp.Ordered](keys []K, searchKey K) int {
	idx, found := slices.BinarySearch(keys, searchKey)
	if found {
		return idx + 1
	}
	return idx
}

// findLeaf descends to the leaf that holds or would hold key
func (tree *BPlusTree[K, V]) findLeaf(key K) *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[findChildIndex(current.keys, key)]
	}
	return current
}

// Search locates the value associated with key
func (tree *BPlusTree[K, V]) Search(key K) (V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(key)
	if idx, found := slices.BinarySearch(leaf.keys, key); found {
		return leaf.values[idx], true
	}
	var zero V
	return zero, false
}

// Insert adds a (key, value) pair, replacing the value of an existing key
func (tree *BPlusTree[K, V]) Insert(key K, value V) {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	idx, found := slices.BinarySearch(leaf.keys, key)
	if found {
		leaf.values[idx] = value
		return
	}
	leaf.keys = slices.Insert(leaf.keys, idx, key)
	leaf.values = slices.Insert(leaf.values, idx, value)
	tree.size++

	if len(leaf.keys) > tree.order {
		tree.splitLeaf(leaf)
	}
}

// Delete removes key and reports whether it was present. Nodes are not
// merged; separators in internal nodes stay valid for routing.
func (tree *BPlusTree[K, V]) Delete(key K) bool {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	idx, found := slices.BinarySearch(leaf.keys, key)
	if !found {
		return false
	}
	leaf.keys = slices.Delete(leaf.keys, idx, idx+1)
	leaf.values = slices.Delete(leaf.values, idx, idx+1)
	tree.size--
	return true
}

// Ascend calls fn for every pair with a key >= from, in key order, until fn
// returns false. fn must not modify the tree.
func (tree *BPlusTree[K, V]) Ascend(from K, fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(from)
	idx, _ := slices.BinarySearch(leaf.keys, from)
	tree.walk(leaf, idx, fn)
}

// Scan calls fn for every pair in key order until fn returns false
func (tree *BPlusTree[K, V]) Scan(fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.root
	for !leaf.isLeaf {
		leaf = leaf.children[0]
	}
	tree.walk(leaf, 0, fn)
}

func (tree *BPlusTree[K, V]) walk(leaf *node[K, V], idx int, fn func(K, V) bool) {
	for ; leaf != nil; leaf, idx = leaf.next, 0 {
		for ; idx < len(leaf.keys); idx++ {
			if !fn(leaf.keys[idx], leaf.values[idx]) {
				return
			}
		}
	}
}

// splitLeaf handles splitting a leaf node that has overflowed.
func (tree *BPlusTree[K, V]) splitLeaf(leaf *node[K, V]) {
	mid := len(leaf.keys) / 2

	newLeaf := &node[K, V]{
		isLeaf: true,
		keys:   append([]K{}, leaf.keys[mid:]...),
		values: append([]V{}, leaf.values[mid:]...),
		next:   leaf.next,
		parent: leaf.parent,
	}

	// Adjust the original leaf
	leaf.keys = leaf.keys[:mid:mid]
	leaf.values = leaf.values[:mid:mid]
	leaf.next = newLeaf

	tree.insertKeyInParent(leaf, newLeaf.keys[0], newLeaf)
}

// insertKeyInParent links rightChild after leftChild under key, creating a
// new root when leftChild is the root.
func (tree *BPlusTree[K, V]) insertKeyInParent(leftChild *node[K, V], key K, rightChild *node[K, V]) {
	parent := leftChild.parent
	if parent == nil {
		newRoot := &node[K, V]{
			keys:     []K{key},
			children: []*node[K, V]{leftChild, rightChild},
		}
		leftChild.parent = newRoot
		rightChild.parent = newRoot
		tree.root = newRoot
		tree.height++
		return
	}

	idx := slices.Index(parent.children, leftChild)
	parent.keys = slices.Insert(parent.keys, idx, key)
	parent.children = slices.Insert(parent.children, idx+1, rightChild)
	rightChild.parent = parent

	if len(parent.keys) > tree.order {
		tree.splitInternalNode(parent)
	}
}

// splitInternalNode handles splitting an internal node that has overflowed.
func (tree *BPlusTree[K, V]) splitInternalNode(internal *node[K, V]) {
	mid := len(internal.keys) / 2
	splitKey := internal.keys[mid]

	newInternal := &node[K, V]{
		keys:     append([]K{}, internal.keys[mid+1:]...),
		children: append([]*node[K, V]{}, internal.children[mid+1:]...),
		parent:   internal.parent,
	}
	for _, child := range newInternal.children {
		child.parent = newInternal
	}

	internal.keys = internal.keys[:mid:mid]
	internal.children = internal.children[: mid+1 : mid+1]

	tree.insertKeyInParent(internal, splitKey, newInternal)
}
