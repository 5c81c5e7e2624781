// Package avltree is a height-balanced binary search tree ordered by a
// caller supplied comparison. Items comparing equal are all kept.
package avltree

import "iter"

type FilterFn[T any] func(current T) bool

type Option[T any] func(*Tree[T])

func WalkOrderAsc[T any]() Option[T] {
	return func(o *Tree[T]) {
		o.order = orderAsc
	}
}

func WalkOrderDesc[T any]() Option[T] {
	return func(o *Tree[T]) {
		o.order = orderDesc
	}
}

type order uint8

const (
	orderAsc order = iota
	orderDesc
)

// New returns an empty tree. cmp returns a negative number when a sorts
// before b, zero when they are equal and a positive number otherwise.
func New[T any](cmp func(a, b T) int, opts ...Option[T]) *Tree[T] {
	t := &Tree[T]{order: orderAsc, cmp: cmp}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type Tree[T any] struct {
	root  *node[T]
	cmp   func(a, b T) int
	order order
	len   int
}

func (t *Tree[T]) Build(items ...T) {
	for i := range items {
		t.Add(items[i])
	}
}

func (t *Tree[T]) Len() int {
	return t.len
}

// Height of the tree, -1 when empty.
func (t *Tree[T]) Height() int {
	return t.root.getHeight()
}

func (t *Tree[T]) Add(item T) {
	t.root = t.root.add(item, t.cmp)
	t.len++
}

// Remove deletes one item comparing equal to item and reports whether
// there was one.
func (t *Tree[T]) Remove(item T) bool {
	var removed bool
	t.root, removed = t.root.remove(item, t.cmp)
	if removed {
		t.len--
	}
	return removed
}

func (t *Tree[T]) Contains(item T) bool {
	n := t.root
	for n != nil {
		c := t.cmp(item, n.item)
		switch {
		case c == 0:
			return true
		case c < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return false
}

// All yields the items in walk order.
func (t *Tree[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.root.walk(t.order, yield)
	}
}

func (t *Tree[T]) Points() []T {
	items := make([]T, 0, t.len)
	for item := range t.All() {
		items = append(items, item)
	}
	return items
}

func (t *Tree[T]) Filter(fn FilterFn[T]) []T {
	var items []T
	for item := range t.All() {
		if fn(item) {
			items = append(items, item)
		}
	}
	return items
}

type node[T any] struct {
	item   T
	left   *node[T]
	right  *node[T]
	height int
}

func (n *node[T]) getHeight() int {
	if n == nil {
		return -1
	}
	return n.height
}

func (n *node[T]) computeHeight() {
	n.height = 1 + max(n.left.getHeight(), n.right.getHeight())
}

func (n *node[T]) balanceFactor() int {
	return n.left.getHeight() - n.right.getHeight()
}

func (n *node[T]) rotateRight() *node[T] {
	root := n.left
	n.left = root.right
	root.right = n
	n.computeHeight()
	root.computeHeight()
	return root
}

func (n *node[T]) rotateLeft() *node[T] {
	root := n.right
	n.right = root.left
	root.left = n
	n.computeHeight()
	root.computeHeight()
	return root
}

func (n *node[T]) rebalance() *node[T] {
	n.computeHeight()
	switch bf := n.balanceFactor(); {
	case bf > 1:
		if n.left.balanceFactor() < 0 {
			n.left = n.left.rotateLeft()
		}
		return n.rotateRight()
	case bf < -1:
		if n.right.balanceFactor() > 0 {
			n.right = n.right.rotateRight()
		}
		return n.rotateLeft()
	}
	return n
}

func (n *node[T]) add(item T, cmp func(a, b T) int) *node[T] {
	if n == nil {
		return &node[T]{item: item}
	}
	if cmp(item, n.item) <= 0 {
		n.left = n.left.add(item, cmp)
	} else {
		n.right = n.right.add(item, cmp)
	}
	return n.rebalance()
}

func (n *node[T]) remove(item T, cmp func(a, b T) int) (*node[T], bool) {
	if n == nil {
		return nil, false
	}
	var removed bool
	switch c := cmp(item, n.item); {
	case c < 0:
		n.left, removed = n.left.remove(item, cmp)
	case c > 0:
		n.right, removed = n.right.remove(item, cmp)
	default:
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		successor := n.right
		for successor.left != nil {
			successor = successor.left
		}
		n.item = successor.item
		n.right = n.right.removeMin()
		removed = true
	}
	return n.rebalance(), removed
}

func (n *node[T]) removeMin() *node[T] {
	if n.left == nil {
		return n.right
	}
	n.left = n.left.removeMin()
	return n.rebalance()
}

func (n *node[T]) walk(o order, yield func(T) bool) bool {
	if n == nil {
		return true
	}
	first, second := n.left, n.right
	if o == orderDesc {
		first, second = n.right, n.left
	}
	return first.walk(o, yield) && yield(n.item) && second.walk(o, yield)
}
