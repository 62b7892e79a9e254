package bptree_test

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/ssargent/recordkit/pkg/bptree"
)

func TestBPlusTree_InsertAndSearch(t *testing.T) {
	tests := map[string]struct {
		tree     *bptree.BPlusTree[int, string]
		actions  []func(tree *bptree.BPlusTree[int, string])
		searches []struct {
			key      int
			expected string
			found    bool
		}
	}{
		"Insert and search integers": {
			tree: bptree.NewBPlusTree[int, string](4),
			actions: []func(tree *bptree.BPlusTree[int, string]){
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(1, "one") },
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(2, "two") },
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(3, "three") },
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(4, "four") },
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(5, "five") },
			},
			searches: []struct {
				key      int
				expected string
				found    bool
			}{
				{1, "one", true},
				{2, "two", true},
				{3, "three", true},
				{4, "four", true},
				{5, "five", true},
				{6, "", false},
			},
		},
		"Insert duplicate keys": {
			tree: bptree.NewBPlusTree[int, string](4),
			actions: []func(tree *bptree.BPlusTree[int, string]){
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(1, "one") },
				func(tree *bptree.BPlusTree[int, string]) { tree.Insert(1, "uno") },
			},
			searches: []struct {
				key      int
				expected string
				found    bool
			}{
				{1, "uno", true},
			},
		},
		"Delete keys": {
			tree: bptree.NewBPlusTree[int, string](3),
			actions: []func(tree *bptree.BPlusTree[int, string]){
				func(tree *bptree.BPlusTree[int, string]) {
					for i := 0; i < 20; i++ {
						tree.Insert(i, fmt.Sprint(i))
					}
				},
				func(tree *bptree.BPlusTree[int, string]) { tree.Delete(7) },
				func(tree *bptree.BPlusTree[int, string]) { tree.Delete(8) },
			},
			searches: []struct {
				key      int
				expected string
				found    bool
			}{
				{6, "6", true},
				{7, "", false},
				{8, "", false},
				{9, "9", true},
			},
		},
		"Search empty tree": {
			tree:    bptree.NewBPlusTree[int, string](4),
			actions: []func(tree *bptree.BPlusTree[int, string]){},
			searches: []struct {
				key      int
				expected string
				found    bool
			}{
				{1, "", false},
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for _, action := range tt.actions {
				action(tt.tree)
			}
			for _, search := range tt.searches {
				value, found := tt.tree.Search(search.key)
				if found != search.found || value != search.expected {
					t.Errorf("Search(%d) = %v, %v; want %v, %v", search.key, value, found, search.expected, search.found)
				}
			}
		})
	}
}

func TestBPlusTree_Ascend(t *testing.T) {
	tree := bptree.NewBPlusTree[string, int](3)
	keys := make([]string, 0, 200)
	for _, i := range rand.New(rand.NewSource(1)).Perm(200) {
		key := fmt.Sprintf("k%03d", i*2)
		keys = append(keys, key)
		tree.Insert(key, i)
	}
	slices.Sort(keys)

	if tree.Len() != 200 {
		t.Fatalf("Len() = %d; want 200", tree.Len())
	}
	if tree.Height() < 3 {
		t.Errorf("Height() = %d; expected splits to grow the tree", tree.Height())
	}

	var all []string
	tree.Scan(func(key string, _ int) bool {
		all = append(all, key)
		return true
	})
	if !slices.Equal(all, keys) {
		t.Fatalf("Scan returned %d keys out of order", len(all))
	}

	tests := []struct {
		from  string
		limit int
		want  []string
	}{
		{from: "", limit: 2, want: []string{"k000", "k002"}},
		{from: "k100", limit: 3, want: []string{"k100", "k102", "k104"}},
		{from: "k101", limit: 2, want: []string{"k102", "k104"}},
		{from: "k396", limit: 5, want: []string{"k396", "k398"}},
		{from: "z", limit: 5, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			var got []string
			tree.Ascend(tt.from, func(key string, _ int) bool {
				got = append(got, key)
				return len(got) < tt.limit
			})
			if !slices.Equal(got, tt.want) {
				t.Errorf("Ascend(%q) = %v; want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestBPlusTree_DeleteThenAscend(t *testing.T) {
	tree := bptree.NewBPlusTree[int, int](3)
	for i := 0; i < 50; i++ {
		tree.Insert(i, i)
	}
	for i := 10; i < 30; i++ {
		if !tree.Delete(i) {
			t.Fatalf("Delete(%d) = false", i)
		}
	}
	if tree.Delete(10) {
		t.Error("Delete of a missing key reported true")
	}

	var got []int
	tree.Ascend(5, func(key, _ int) bool {
		got = append(got, key)
		return len(got) < 8
	})
	want := []int{5, 6, 7, 8, 9, 30, 31, 32}
	if !slices.Equal(got, want) {
		t.Errorf("Ascend after delete = %v; want %v", got, want)
	}
	if tree.Len() != 30 {
		t.Errorf("Len() = %d; want 30", tree.Len())
	}

	tree.Insert(20, 20)
	if v, found := tree.Search(20); !found || v != 20 {
		t.Errorf("Search(20) after reinsert = %v, %v", v, found)
	}
}

func TestBPlusTree_Concurrency(t *testing.T) {
	tree := bptree.NewBPlusTree[int, string](4)

	// Insert keys concurrently
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tree.Insert(i, string(rune('a'+i-1)))
		}(i)
	}
	wg.Wait()

	// Search and scan concurrently
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, found := tree.Search(i); !found {
				t.Errorf("Expected to find key %d", i)
			}
			n := 0
			tree.Ascend(i, func(int, string) bool {
				n++
				return true
			})
			if n != 101-i {
				t.Errorf("Ascend(%d) visited %d keys; want %d", i, n, 101-i)
			}
		}(i)
	}
	wg.Wait()
}
