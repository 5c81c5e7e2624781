package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/pkg/container/kdrange"
	"github.com/go-sod/weld/pkg/geom"
)

// clusterConfig is the TOML file read by the cluster command.
type clusterConfig struct {
	Eps        float64 `toml:"eps"`
	ClusterEps float64 `toml:"cluster_eps"`
	// file of "x y z" lines, "-" reads stdin
	Points  string        `toml:"points"`
	Queries []queryConfig `toml:"query"`
}

type queryConfig struct {
	Min   []float64 `toml:"min"`
	Max   []float64 `toml:"max"`
	Scale float64   `toml:"scale"`
}

func (q queryConfig) box() (geom.Box, error) {
	lo, err := geom.FromSlice(q.Min)
	if err != nil {
		return geom.Box{}, fmt.Errorf("query min: %w", err)
	}
	hi, err := geom.FromSlice(q.Max)
	if err != nil {
		return geom.Box{}, fmt.Errorf("query max: %w", err)
	}
	box := geom.NewBox(lo, hi)
	if q.Scale > 0 {
		box = box.Scale(q.Scale)
	}
	return box, nil
}

func loadClusterConfig(path string) (*clusterConfig, error) {
	cfg := clusterConfig{Eps: 1e-9, ClusterEps: 0.01, Points: "-"}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

func newClusterCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Index a point file and print its clusters and query results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadClusterConfig(configPath)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if cfg.Points != "-" {
				f, err := os.Open(cfg.Points)
				if err != nil {
					return fmt.Errorf("open points: %w", err)
				}
				defer f.Close()
				in = f
			}

			index, err := kdrange.New(cfg.Eps, cfg.ClusterEps,
				kdrange.WithLogger(logging.FromContext(cmd.Context())))
			if err != nil {
				return err
			}
			if err := readPoints(in, func(p geom.Vec3) { index.Append(p) }); err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), index, cfg.Queries, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "weld.toml", "path to the TOML config")
	cmd.Flags().BoolVar(&debug, "debug", false, "dump the state of every node")
	return cmd
}

// readPoints parses "x y z" lines. Blank lines and lines starting with # are
// skipped.
func readPoints(r io.Reader, fn func(geom.Vec3)) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != geom.Dimensions {
			return fmt.Errorf("line %d: %w", line, geom.ErrDimNotEqual)
		}
		var coords [geom.Dimensions]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			coords[i] = v
		}
		p := geom.NewVec3(coords[0], coords[1], coords[2])
		if !p.IsFinite() {
			return fmt.Errorf("line %d: coordinates must be finite", line)
		}
		fn(p)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read points: %w", err)
	}
	return nil
}

func format(v geom.Vec3) string {
	return fmt.Sprintf("(%.6g, %.6g, %.6g)", v.X, v.Y, v.Z)
}

// nodeState is the debug view of a node.
type nodeState struct {
	Point      geom.Vec3
	Depth      int
	Dim        int
	Count      int
	CoreWeight int
	Absorbed   bool
	Bounds     geom.Box
}

func report(w io.Writer, index *kdrange.Index, queries []queryConfig, debug bool) error {
	bw := bufio.NewWriter(w)
	clusters := index.Clusters()
	_, _ = fmt.Fprintf(bw, "points: %d, nodes: %d, clusters: %d\n", index.Len(), index.Nodes(), len(clusters))
	if index.Len() > 0 {
		box := index.ABox()
		_, _ = fmt.Fprintf(bw, "bbox: %s %s\n", format(box.Min), format(box.Max))
	}
	for i, c := range clusters {
		_, _ = fmt.Fprintf(bw, "cluster %d: center %s count %d core %d\n",
			i, format(c.Center()), c.ClusterCount(), c.CoreWeight())
	}

	for i, q := range queries {
		box, err := q.box()
		if err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
		points := index.RangeSearch(box)
		_, _ = fmt.Fprintf(bw, "query %d: %d points\n", i, len(points))
		for _, p := range points {
			_, _ = fmt.Fprintf(bw, "  %g %g %g\n", p.X, p.Y, p.Z)
		}
	}

	if debug {
		var states []nodeState
		var walk func(n *kdrange.Node)
		walk = func(n *kdrange.Node) {
			if n == nil {
				return
			}
			states = append(states, nodeState{
				Point:      n.Point(),
				Depth:      n.Depth(),
				Dim:        n.Dim(),
				Count:      n.ClusterCount(),
				CoreWeight: n.CoreWeight(),
				Absorbed:   n.Absorbed(),
				Bounds:     n.Bounds(),
			})
			walk(n.Left())
			walk(n.Right())
		}
		walk(index.Root())
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(bw, states)
	}
	return bw.Flush()
}
