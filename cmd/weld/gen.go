package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/valyala/fastrand"
)

func newGenCmd() *cobra.Command {
	var (
		n     int
		scale float64
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Print random points, one \"x y z\" line each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 0 {
				return fmt.Errorf("number of points must not be negative, got %d", n)
			}
			return generate(cmd.OutOrStdout(), n, scale)
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 100, "number of points")
	cmd.Flags().Float64Var(&scale, "scale", 1, "coordinates are drawn from [0, scale)")
	return cmd
}

func generate(w io.Writer, n int, scale float64) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		if _, err := fmt.Fprintf(bw, "%g %g %g\n", random(scale), random(scale), random(scale)); err != nil {
			return fmt.Errorf("write point: %w", err)
		}
	}
	return bw.Flush()
}

func random(scale float64) float64 {
	return float64(fastrand.Uint32n(1<<24)) / float64(1<<24) * scale
}
