package kdrange

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"go.uber.org/zap"

	"github.com/go-sod/weld/pkg/geom"
	"github.com/go-sod/weld/pkg/pqueue"
)

var ErrInvalidTolerance = errors.New("tolerance must be a finite non-negative number")

// MergeEvent describes a point welded into an existing node.
type MergeEvent struct {
	// Target is the node that received the point
	Target *Node
	Point  geom.Vec3
	// Bridged lists the clusters absorbed into Target through Point
	Bridged []*Node
}

type Option func(*Index)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Index) {
		t.logger = logger
	}
}

// WithMergeObserver registers a callback invoked after every merge.
// The callback runs on the appending goroutine.
func WithMergeObserver(fn func(MergeEvent)) Option {
	return func(t *Index) {
		t.onMerge = fn
	}
}

// Index is an append-only k-d tree over 3-D points that welds points lying
// within ClusterEps of each other into clusters.
//
// Index is not safe for concurrent writers. Readers may run concurrently
// with each other but not with Append.
type Index struct {
	eps        float64
	clusterEps float64

	nodes []*Node
	root  int32
	box   geom.Box
	len   int

	logger  *zap.SugaredLogger
	onMerge func(MergeEvent)
}

// New creates an empty index. eps is the numeric comparison tolerance used
// on descent and clusterEps is the absorption radius.
func New(eps, clusterEps float64, opts ...Option) (*Index, error) {
	for _, v := range []float64{eps, clusterEps} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, v)
		}
	}
	t := &Index{
		eps:        eps,
		clusterEps: clusterEps,
		root:       none,
		box:        geom.EmptyBox(),
		logger:     zap.NewNop().Sugar(),
	}
	for _, f := range opts {
		f(t)
	}
	return t, nil
}

func (t *Index) Eps() float64 {
	return t.eps
}

func (t *Index) ClusterEps() float64 {
	return t.clusterEps
}

// Len is the number of points appended.
func (t *Index) Len() int {
	return t.len
}

// Nodes is the number of nodes created.
func (t *Index) Nodes() int {
	return len(t.nodes)
}

func (t *Index) Root() *Node {
	return t.node(t.root)
}

// ABox is the bounding box of every appended point.
func (t *Index) ABox() geom.Box {
	return t.box
}

// Append inserts p and returns the node it ended up in: an existing node
// when p was welded into it, a new leaf otherwise.
func (t *Index) Append(p geom.Vec3) *Node {
	t.len++
	t.box = t.box.Extend(p)

	root := t.Root()
	if root == nil {
		root = t.attach(nil, false, p)
		t.root = root.id
		return root
	}

	candidates := t.within(p)
	if len(candidates) == 0 {
		return root.propagate(p)
	}

	// merging has priority over descent: the first node on the path wins,
	// the nearest one otherwise
	target, _, _ := root.locate(p)
	if target == nil {
		target = candidates[0]
	}
	target.absorb(p)

	bridged := make([]*Node, 0, len(candidates)-1)
	for _, c := range candidates {
		if c != target {
			bridged = append(bridged, c)
		}
	}
	if len(bridged) > 0 {
		target.bridge(p, bridged)
		t.logger.Debugw("clusters bridged",
			"target", target.id,
			"bridged", len(bridged),
			"count", target.count,
		)
	}

	if t.onMerge != nil {
		t.onMerge(MergeEvent{Target: target, Point: p, Bridged: bridged})
	}
	return target
}

// PointsWithin yields every appended point contained in box.
func (t *Index) PointsWithin(box geom.Box) iter.Seq[geom.Vec3] {
	return func(yield func(geom.Vec3) bool) {
		root := t.Root()
		if root == nil {
			return
		}
		root.CollectWithin(box)(yield)
	}
}

// RangeSearch is the eager form of PointsWithin.
func (t *Index) RangeSearch(box geom.Box) []geom.Vec3 {
	var points []geom.Vec3
	for p := range t.PointsWithin(box) {
		points = append(points, p)
	}
	return points
}

// Representatives yields every live node, that is every node whose points
// were not absorbed into another cluster.
func (t *Index) Representatives() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range t.nodes {
			if !n.Absorbed() && !yield(n) {
				return
			}
		}
	}
}

// Clusters returns the live nodes holding more than one point.
func (t *Index) Clusters() []*Node {
	var clusters []*Node
	for n := range t.Representatives() {
		if n.cluster {
			clusters = append(clusters, n)
		}
	}
	return clusters
}

func (t *Index) node(id int32) *Node {
	if id == none {
		return nil
	}
	return t.nodes[id]
}

// attach creates a leaf holding p below parent.
func (t *Index) attach(parent *Node, right bool, p geom.Vec3) *Node {
	n := &Node{
		tree:       t,
		id:         int32(len(t.nodes)),
		parent:     none,
		left:       none,
		right:      none,
		owner:      none,
		point:      p,
		bounds:     geom.PointBox(p),
		count:      1,
		coreWeight: 1,
		members:    []geom.Vec3{p},
	}
	t.nodes = append(t.nodes, n)
	if parent == nil {
		return n
	}

	n.parent = parent.id
	n.dim = (parent.dim + 1) % geom.Dimensions
	n.depth = parent.depth + 1
	delta := math.Abs(p.Dim(parent.dim) - parent.point.Dim(parent.dim))
	if right {
		parent.right = n.id
		parent.rMin = delta
	} else {
		parent.left = n.id
		parent.lMin = delta
	}
	parent.grow(n.bounds)
	return n
}

// within returns the live nodes whose representative lies closer than the
// cluster radius to p, nearest first.
func (t *Index) within(p geom.Vec3) []*Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	q := pqueue.New[*Node]()
	area := geom.PointBox(p).Grow(t.clusterEps)

	var walk func(n *Node)
	walk = func(n *Node) {
		if !n.bounds.Intersects(area) {
			return
		}
		if !n.Absorbed() {
			if d := n.point.Dist(p); d < t.clusterEps {
				q.Push(n, d)
			}
		}
		if l := n.Left(); l != nil {
			walk(l)
		}
		if r := n.Right(); r != nil {
			walk(r)
		}
	}
	walk(root)
	return q.PopAll()
}

// resolve follows owner links to the live node.
func (t *Index) resolve(id int32) int32 {
	for t.nodes[id].owner != none {
		id = t.nodes[id].owner
	}
	return id
}
