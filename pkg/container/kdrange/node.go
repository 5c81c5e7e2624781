package kdrange

import (
	"iter"

	"github.com/go-sod/weld/pkg/geom"
)

// none marks an absent arena handle.
const none int32 = -1

// Node is a single point or a cluster of points welded together.
//
// Nodes live in the arena of their Index. Links between nodes (children,
// parent and the owner of an absorbed node) are arena handles, so the tree
// has exactly one owner per node and no reference cycles.
type Node struct {
	tree *Index

	id     int32
	parent int32
	left   int32
	right  int32
	// owner is the node that absorbed this node's cluster
	owner int32

	point geom.Vec3
	dim   int
	depth int
	// bounds covers every member held by this node and its subtree
	bounds geom.Box
	// axis offsets of the children measured when they were attached
	rMin, lMin float64

	cluster    bool
	count      int
	coreWeight int
	// members, most recently merged core point first
	members []geom.Vec3
}

// Point is the representative of the node: the inserted point for a single
// point node and the running centroid for a cluster.
func (n *Node) Point() geom.Vec3 {
	return n.point
}

// Center is an alias of Point.
func (n *Node) Center() geom.Vec3 {
	return n.point
}

// Dim is the split axis, 0 for X, 1 for Y and 2 for Z.
func (n *Node) Dim() int {
	return n.dim
}

func (n *Node) Depth() int {
	return n.depth
}

func (n *Node) Left() *Node {
	return n.tree.node(n.left)
}

func (n *Node) Right() *Node {
	return n.tree.node(n.right)
}

func (n *Node) Parent() *Node {
	return n.tree.node(n.parent)
}

func (n *Node) IsCluster() bool {
	return n.cluster
}

// ClusterCount is the number of raw points held by the node, 1 for a single point.
func (n *Node) ClusterCount() int {
	return n.count
}

// CoreWeight is the number of points merged directly into this node,
// the seed point included. Absorbed sub-clusters do not add to it.
func (n *Node) CoreWeight() int {
	return n.coreWeight
}

// ClusterPoints returns a copy of the raw points held by the node.
func (n *Node) ClusterPoints() []geom.Vec3 {
	points := make([]geom.Vec3, len(n.members))
	copy(points, n.members)
	return points
}

// Seed is the point that created the node.
func (n *Node) Seed() geom.Vec3 {
	return n.members[n.coreWeight-1]
}

// Bounds is the bounding box of every member stored in the node's subtree.
func (n *Node) Bounds() geom.Box {
	return n.bounds
}

// Absorbed reports whether the node's cluster was merged into another node.
// An absorbed node keeps routing insertions but no longer reports points.
func (n *Node) Absorbed() bool {
	return n.owner != none
}

// Owner returns the live node holding this node's points, or nil if the
// node itself is live.
func (n *Node) Owner() *Node {
	if n.owner == none {
		return nil
	}
	return n.tree.node(n.tree.resolve(n.id))
}

// RMin is the axis-Dim offset recorded when the right child was attached.
// ok is false when there is no right child.
func (n *Node) RMin() (float64, bool) {
	return n.rMin, n.right != none
}

// LMin is the axis-Dim offset recorded when the left child was attached.
// ok is false when there is no left child.
func (n *Node) LMin() (float64, bool) {
	return n.lMin, n.left != none
}

// locate walks the descent path of p. It returns the first live node whose
// representative is within the cluster radius of p, or, when there is none,
// the node p would be attached to and the side to attach it on.
func (n *Node) locate(p geom.Vec3) (target *Node, parent *Node, right bool) {
	t := n.tree
	cur := n
	for {
		if !cur.Absorbed() && cur.point.Dist(p) < t.clusterEps {
			return cur, nil, false
		}
		// ties within eps descend to the left
		delta := p.Dim(cur.dim) - cur.point.Dim(cur.dim)
		next := cur.left
		right = delta > t.eps
		if right {
			next = cur.right
		}
		if next == none {
			return nil, cur, right
		}
		cur = t.node(next)
	}
}

// propagate inserts p below n: p joins the first node on its path that is
// close enough, otherwise it becomes a new leaf.
func (n *Node) propagate(p geom.Vec3) *Node {
	target, parent, right := n.locate(p)
	if target != nil {
		target.absorb(p)
		return target
	}
	return n.tree.attach(parent, right, p)
}

// absorb merges p into the node as a core point.
func (n *Node) absorb(p geom.Vec3) {
	w := float64(n.coreWeight)
	n.point = n.point.Scale(w).Add(p).Scale(1 / (w + 1))
	n.coreWeight++
	n.count++
	n.cluster = true
	n.members = append([]geom.Vec3{p}, n.members...)
	n.grow(geom.PointBox(p))
}

// bridge absorbs clusters linked to n through the core point p. Each
// sub-cluster counts as one unit weighted by its size, and p stands in
// for the node's own core points.
func (n *Node) bridge(p geom.Vec3, subs []*Node) {
	if len(subs) == 0 {
		return
	}
	total := float64(n.coreWeight)
	sum := p.Scale(total)
	for _, s := range subs {
		w := float64(s.count)
		sum = sum.Add(s.point.Scale(w))
		total += w

		n.members = append(n.members, s.members...)
		n.count += s.count
		s.owner = n.id
		n.grow(s.bounds)
	}
	n.point = sum.Scale(1 / total)
	n.cluster = true
}

// grow extends the bounds of the node and of all its ancestors.
func (n *Node) grow(b geom.Box) {
	for cur := n; cur != nil; cur = cur.Parent() {
		cur.bounds = cur.bounds.Union(b)
	}
}

// CollectWithin yields every point of the subtree that lies inside box.
// Each call performs a fresh traversal.
func (n *Node) CollectWithin(box geom.Box) iter.Seq[geom.Vec3] {
	return func(yield func(geom.Vec3) bool) {
		if !n.bounds.Intersects(box) {
			return
		}
		n.collectWithin(box, yield)
	}
}

func (n *Node) collectWithin(box geom.Box, yield func(geom.Vec3) bool) bool {
	if !n.Absorbed() {
		for _, p := range n.members {
			if box.Contains(p) && !yield(p) {
				return false
			}
		}
	}
	if l := n.Left(); l != nil && l.bounds.Intersects(box) {
		if !l.collectWithin(box, yield) {
			return false
		}
	}
	if r := n.Right(); r != nil && r.bounds.Intersects(box) {
		if !r.collectWithin(box, yield) {
			return false
		}
	}
	return true
}
