package interval

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkInvariants walks the whole tree verifying the AVL balance bound,
// stored heights, the maxEnd aggregates, and key ordering.
func checkInvariants(t *testing.T, tr *Tree[uint64, int]) {
	t.Helper()
	var walk func(n *node[uint64, int]) (h int, maxEnd uint64)
	walk = func(n *node[uint64, int]) (int, uint64) {
		if n == nil {
			return 0, 0
		}
		require.NotEmpty(t, n.bucket, "node with empty bucket")
		for _, iv := range n.bucket {
			require.Equal(t, n.key(), iv.Start, "bucket with mixed start keys")
		}
		if n.left != nil {
			require.Less(t, n.left.key(), n.key(), "left child key out of order")
		}
		if n.right != nil {
			require.Greater(t, n.right.key(), n.key(), "right child key out of order")
		}

		lh, lm := walk(n.left)
		rh, rm := walk(n.right)

		bal := lh - rh
		require.LessOrEqual(t, bal, 1, "balance factor above +1 at key %d", n.key())
		require.GreaterOrEqual(t, bal, -1, "balance factor below -1 at key %d", n.key())
		require.Equal(t, 1+max(lh, rh), n.height, "stale height at key %d", n.key())

		want := uint64(0)
		for _, iv := range n.bucket {
			if iv.End > want {
				want = iv.End
			}
		}
		want = max(want, lm, rm)
		require.Equal(t, want, n.maxEnd, "stale maxEnd at key %d", n.key())
		return n.height, n.maxEnd
	}
	walk(tr.root)
}

// ids extracts the sorted id set of a query result.
func ids(ivs []Interval[uint64, int]) []uint64 {
	out := make([]uint64, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, iv.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestEmptyTree(t *testing.T) {
	tr := New[uint64, int]()
	require.True(t, tr.Empty())
	require.Equal(t, 0, tr.Len())
	require.Empty(t, tr.Query(42))

	// erasing on an empty tree is a no-op
	tr.Erase(0)
	require.True(t, tr.Empty())
}

func TestInsertQueryBasic(t *testing.T) {
	tr := New[uint64, int]()
	a := tr.Insert(10, 20, 1)
	b := tr.Insert(30, 40, 2)
	checkInvariants(t, tr)

	require.Equal(t, []uint64{a}, ids(tr.Query(10)))
	require.Equal(t, []uint64{a}, ids(tr.Query(20))) // end-inclusive match
	require.Empty(t, tr.Query(25))
	require.Equal(t, []uint64{b}, ids(tr.Query(35)))
	require.Empty(t, tr.Query(41))
	require.Empty(t, tr.Query(5))
}

func TestDuplicateStartBuckets(t *testing.T) {
	tr := New[uint64, int]()
	a := tr.Insert(15, 45, 1)
	b := tr.Insert(25, 35, 2)
	c := tr.Insert(30, 40, 3)
	checkInvariants(t, tr)

	require.Equal(t, []uint64{a, b, c}, ids(tr.Query(35)))

	tr.Erase(b)
	checkInvariants(t, tr)
	require.Equal(t, []uint64{a, c}, ids(tr.Query(35)))

	// duplicate starts share one node but stay individually erasable
	d := tr.Insert(15, 18, 4)
	e := tr.Insert(15, 60, 5)
	checkInvariants(t, tr)
	require.Equal(t, []uint64{a, e}, ids(tr.Query(45)))

	tr.Erase(a)
	checkInvariants(t, tr)
	require.Equal(t, []uint64{e}, ids(tr.Query(45)))
	require.Equal(t, []uint64{d, e}, ids(tr.Query(16)))
}

// TestQueryBothSubtrees pins the shape where a point lies inside ranges in
// the left and the right subtree at once, which a single-branch descent
// would miss.
func TestQueryBothSubtrees(t *testing.T) {
	tr := New[uint64, int]()
	root := tr.Insert(25, 35, 0)
	left := tr.Insert(15, 45, 0)
	right := tr.Insert(30, 40, 0)
	checkInvariants(t, tr)

	require.Equal(t, []uint64{root, left, right}, ids(tr.Query(35)))
	require.Equal(t, []uint64{left, right}, ids(tr.Query(40)))
	require.Equal(t, []uint64{left}, ids(tr.Query(45)))
}

func TestEraseUnknownIDNoop(t *testing.T) {
	tr := New[uint64, int]()
	a := tr.Insert(1, 5, 0)
	tr.Erase(a + 100)
	require.Equal(t, 1, tr.Len())
	require.Equal(t, []uint64{a}, ids(tr.Query(3)))

	// double erase of the same id
	tr.Erase(a)
	tr.Erase(a)
	require.True(t, tr.Empty())
}

func TestEraseToEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := New[uint64, int]()

	const n = 200
	handles := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		start := uint64(rng.Intn(64)) // heavy duplicate-start pressure
		handles = append(handles, tr.Insert(start, start+uint64(rng.Intn(100)), i))
	}
	checkInvariants(t, tr)
	require.Equal(t, n, tr.Len())

	rng.Shuffle(len(handles), func(i, j int) { handles[i], handles[j] = handles[j], handles[i] })
	for _, id := range handles {
		tr.Erase(id)
		checkInvariants(t, tr)
	}

	require.True(t, tr.Empty())
	require.Equal(t, 0, tr.Len())
	for p := uint64(0); p < 200; p += 17 {
		require.Empty(t, tr.Query(p))
	}
}

// TestEraseTwoChildrenWithDuplicateSuccessor removes a node whose in-order
// successor carries a duplicate-start bucket. The successor's whole bucket
// must move, or two nodes end up sharing one start key.
func TestEraseTwoChildrenWithDuplicateSuccessor(t *testing.T) {
	tr := New[uint64, int]()
	target := tr.Insert(10, 15, 0)
	tr.Insert(5, 9, 0)
	s1 := tr.Insert(20, 26, 0)
	s2 := tr.Insert(20, 44, 0)
	tr.Insert(30, 33, 0)

	tr.Erase(target)
	checkInvariants(t, tr)
	require.Equal(t, []uint64{s1, s2}, ids(tr.Query(25)))
	require.Equal(t, 4, tr.Len())

	// both duplicates stay individually erasable after the move
	tr.Erase(s1)
	checkInvariants(t, tr)
	require.Equal(t, []uint64{s2}, ids(tr.Query(25)))
	tr.Erase(s2)
	checkInvariants(t, tr)
	require.Empty(t, tr.Query(25))
	require.Equal(t, 2, tr.Len())
}

func TestAscendingAndDescendingInserts(t *testing.T) {
	// degenerate insertion orders force every rotation case
	up := New[uint64, int]()
	for i := uint64(0); i < 128; i++ {
		up.Insert(i, i+3, 0)
		checkInvariants(t, up)
	}
	down := New[uint64, int]()
	for i := uint64(128); i > 0; i-- {
		down.Insert(i, i+3, 0)
		checkInvariants(t, down)
	}
	require.Len(t, up.Query(64), 4) // [61..64] all cover 64
}

// TestRandomizedAgainstReference drives the tree with a random op stream
// and checks every query against a naive scan of the live set.
func TestRandomizedAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1337))
	tr := New[uint64, int]()
	live := map[uint64]Interval[uint64, int]{}

	naive := func(p uint64) []uint64 {
		var out []uint64
		for id, iv := range live {
			if iv.Start <= p && p <= iv.End {
				out = append(out, id)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		if out == nil {
			out = []uint64{}
		}
		return out
	}

	for op := 0; op < 3000; op++ {
		switch r := rng.Intn(10); {
		case r < 4: // insert
			start := uint64(rng.Intn(500))
			end := start + uint64(rng.Intn(80))
			id := tr.Insert(start, end, op)
			live[id] = Interval[uint64, int]{Start: start, End: end, ID: id}
		case r < 6 && len(live) > 0: // erase a live id
			for id := range live {
				tr.Erase(id)
				delete(live, id)
				break
			}
		default: // query
			p := uint64(rng.Intn(600))
			got := ids(tr.Query(p))
			if len(got) == 0 {
				got = []uint64{}
			}
			require.Equal(t, naive(p), got, "query(%d) diverged at op %d", p, op)
		}
		if op%100 == 0 {
			checkInvariants(t, tr)
			require.Equal(t, len(live), tr.Len())
		}
	}
	checkInvariants(t, tr)
}

func TestPointerKeyedTree(t *testing.T) {
	// the monitor stores uintptr keys; make sure large address-like keys
	// behave
	tr := New[uintptr, string]()
	base := uintptr(0x7ffd_0000_1000)
	tr.Insert(base, base+8, "a")
	tr.Insert(base+4, base+12, "b")
	require.Len(t, tr.Query(base+4), 2)
	require.Len(t, tr.Query(base+12), 1)
	require.Empty(t, tr.Query(base-1))
}
