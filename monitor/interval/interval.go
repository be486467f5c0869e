// Package interval implements an augmented interval tree on an AVL core.
//
// The tree indexes ranges by their start point and carries, per node, the
// maximum end point found anywhere in that node's subtree. The aggregate
// lets point-containment queries prune whole subtrees while still running
// in O(log n + matches).
//
// An AVL tree is a better fit than a red-black tree here because the
// workload is lookup-heavy with few insertions and removals. Duplicate
// start points are supported: intervals sharing a start share one node and
// are told apart by id, so each stays individually erasable.
package interval

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Interval is one stored range plus its identity.
//
// The id is assigned at insertion, is unique for the lifetime of the tree,
// and is the only way to address an interval for removal. Start points are
// not unique, so identity rather than value has to name the target.
type Interval[K constraints.Ordered, V any] struct {
	Start K
	End   K
	Value V
	ID    uint64
}

// node holds every interval sharing one start key. Children are owned
// exclusively by their parent; rotations hand ownership back up the
// recursion as the new subtree root.
type node[K constraints.Ordered, V any] struct {
	bucket []Interval[K, V]
	height int
	maxEnd K
	left   *node[K, V]
	right  *node[K, V]
}

// key returns the start point shared by every interval in the node.
func (n *node[K, V]) key() K { return n.bucket[0].Start }

// Tree is an augmented AVL interval tree. The zero value is not usable;
// call New. Tree is not safe for concurrent use.
type Tree[K constraints.Ordered, V any] struct {
	root   *node[K, V]
	nextID uint64

	// byID resolves an interval id back to its start key so Erase can
	// descend without a full scan.
	byID map[uint64]Interval[K, V]
}

// New creates an empty tree.
func New[K constraints.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{byID: make(map[uint64]Interval[K, V])}
}

// Insert stores [start, end] with the given value and returns the id that
// names it. Inserting a start point that already exists appends to that
// node's bucket instead of growing the tree.
func (t *Tree[K, V]) Insert(start, end K, v V) uint64 {
	id := t.nextID
	t.nextID++
	iv := Interval[K, V]{Start: start, End: end, Value: v, ID: id}
	t.byID[id] = iv
	t.root = insert(t.root, iv)
	return id
}

// Erase removes the interval named by id. Erasing an unknown id is a no-op.
func (t *Tree[K, V]) Erase(id uint64) {
	iv, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	t.root = erase(t.root, iv.Start, id)
}

// Query returns every interval with Start <= point <= End, in no
// particular order. The result size depends on how many ranges overlap the
// point, not on the size of the tree.
func (t *Tree[K, V]) Query(point K) []Interval[K, V] {
	var out []Interval[K, V]
	t.root.query(point, &out)
	return out
}

// Empty reports whether the tree holds no intervals.
func (t *Tree[K, V]) Empty() bool { return t.root == nil }

// Len returns the number of live intervals.
func (t *Tree[K, V]) Len() int { return len(t.byID) }

func height[K constraints.Ordered, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

// balance is the AVL balance factor, kept within [-1, 1].
func balance[K constraints.Ordered, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

// updateMaxEnd recomputes the subtree aggregate from the node's own bucket
// and the (already correct) aggregates of both children.
func (n *node[K, V]) updateMaxEnd() {
	m := n.bucket[0].End
	for _, iv := range n.bucket[1:] {
		if iv.End > m {
			m = iv.End
		}
	}
	if n.left != nil && n.left.maxEnd > m {
		m = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > m {
		m = n.right.maxEnd
	}
	n.maxEnd = m
}

func (n *node[K, V]) updateHeight() {
	n.height = 1 + max(height(n.left), height(n.right))
}

// rotateLeft lifts n's right child to the subtree root. The demoted node's
// height and aggregate are refreshed before the promoted node's, since the
// latter reads them.
func rotateLeft[K constraints.Ordered, V any](n *node[K, V]) *node[K, V] {
	r := n.right
	n.right = r.left
	r.left = n
	n.updateHeight()
	n.updateMaxEnd()
	r.updateHeight()
	r.updateMaxEnd()
	return r
}

func rotateRight[K constraints.Ordered, V any](n *node[K, V]) *node[K, V] {
	l := n.left
	n.left = l.right
	l.right = n
	n.updateHeight()
	n.updateMaxEnd()
	l.updateHeight()
	l.updateMaxEnd()
	return l
}

func insert[K constraints.Ordered, V any](n *node[K, V], iv Interval[K, V]) *node[K, V] {
	if n == nil {
		return &node[K, V]{bucket: []Interval[K, V]{iv}, height: 1, maxEnd: iv.End}
	}

	switch {
	case iv.Start < n.key():
		n.left = insert(n.left, iv)
	case iv.Start > n.key():
		n.right = insert(n.right, iv)
	default:
		// duplicate start point: share the node
		n.bucket = append(n.bucket, iv)
	}

	n.updateHeight()
	n.updateMaxEnd()

	// four classic AVL cases, selected by where the new start went
	switch b := balance(n); {
	case b > 1 && iv.Start < n.left.key(): // left-left
		return rotateRight(n)
	case b < -1 && iv.Start > n.right.key(): // right-right
		return rotateLeft(n)
	case b > 1 && iv.Start > n.left.key(): // left-right
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case b < -1 && iv.Start < n.right.key(): // right-left
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

// minNode returns the leftmost node of a non-empty subtree.
func minNode[K constraints.Ordered, V any](n *node[K, V]) *node[K, V] {
	for n.left != nil {
		n = n.left
	}
	return n
}

func erase[K constraints.Ordered, V any](n *node[K, V], key K, id uint64) *node[K, V] {
	if n == nil {
		return nil
	}

	switch {
	case key < n.key():
		n.left = erase(n.left, key, id)
	case key > n.key():
		n.right = erase(n.right, key, id)
	default:
		if len(n.bucket) > 1 {
			// other intervals share this start point; drop just the
			// matching one and keep the node
			if i := slices.IndexFunc(n.bucket, func(iv Interval[K, V]) bool { return iv.ID == id }); i >= 0 {
				n.bucket = slices.Delete(n.bucket, i, i+1)
			}
		} else if n.left == nil || n.right == nil {
			// sole occupant with at most one child: promote the child,
			// or vanish if a leaf
			child := n.left
			if child == nil {
				child = n.right
			}
			n = child
		} else {
			// two children: adopt the in-order successor's whole bucket,
			// then drop that node from the right subtree. The successor
			// holds the smallest start in the right subtree, so the
			// ordering invariant survives the key change, and taking the
			// full bucket, not just its head, keeps start keys unique
			// across nodes even when the successor carries duplicates.
			n.bucket = minNode(n.right).bucket
			n.right = eraseMin(n.right)
		}
	}

	if n == nil {
		return nil
	}
	return fixup(n)
}

// eraseMin removes the leftmost node of a non-empty subtree, bucket and
// all, rebalancing on the way back up.
func eraseMin[K constraints.Ordered, V any](n *node[K, V]) *node[K, V] {
	if n.left == nil {
		return n.right
	}
	n.left = eraseMin(n.left)
	return fixup(n)
}

// fixup refreshes a node's aggregates after a removal below it and
// restores the AVL balance if the removal tipped it. The case split runs
// on the children's balance factors rather than on any erased key.
func fixup[K constraints.Ordered, V any](n *node[K, V]) *node[K, V] {
	n.updateHeight()
	n.updateMaxEnd()

	switch b := balance(n); {
	case b > 1 && balance(n.left) >= 0: // left-left
		return rotateRight(n)
	case b > 1: // left-right
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case b < -1 && balance(n.right) <= 0: // right-right
		return rotateLeft(n)
	case b < -1: // right-left
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func (n *node[K, V]) query(point K, out *[]Interval[K, V]) {
	if n == nil {
		return
	}

	if n.key() <= point {
		for _, iv := range n.bucket {
			if point <= iv.End {
				*out = append(*out, iv)
			}
		}
	}

	// Both descents are independent, not either/or. With
	//
	//	      [25, 35]
	//	      /      \
	//	[15, 45]   [30, 40]
	//
	// the point 35 lies inside ranges on both sides, so taking the right
	// branch only when the left is unsuitable would miss [30, 40].
	if n.left != nil && n.left.maxEnd >= point {
		n.left.query(point, out)
	}
	if n.right != nil && n.key() <= point {
		n.right.query(point, out)
	}
}
