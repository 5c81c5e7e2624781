package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sod/weld/pkg/geom"
)

func TestReadPoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected []geom.Vec3
		wantErr  bool
	}{
		{
			name:     "positive_read",
			input:    "# scenario\n1 0 0\n\n1.01 0 0\n  1.015\t0 0  \n",
			expected: []geom.Vec3{{X: 1}, {X: 1.01}, {X: 1.015}},
		},
		{name: "short_line", input: "1 0\n", wantErr: true},
		{name: "not_a_number", input: "1 a 0\n", wantErr: true},
		{name: "not_finite", input: "1 Inf 0\n", wantErr: true},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var got []geom.Vec3
			err := readPoints(strings.NewReader(test.input), func(p geom.Vec3) {
				got = append(got, p)
			})
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestClusterCmd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	points := filepath.Join(dir, "points.txt")
	require.NoError(t, os.WriteFile(points, []byte("1 0 0\n1.01 0 0\n1.015 0 0\n1.005 0 0\n"), 0o600))
	config := filepath.Join(dir, "weld.toml")
	require.NoError(t, os.WriteFile(config, []byte(`
eps = 1e-6
cluster_eps = 0.01
points = "`+points+`"

[[query]]
min = [1.004, -1, -1]
max = [1.011, 1, 1]
`), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cluster", "--config", config, "--debug"})
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, "points: 4, nodes: 2, clusters: 1")
	assert.Contains(t, got, "cluster 0: center (1.00875, 0, 0) count 4 core 2")
	assert.Contains(t, got, "query 0: 2 points")
	assert.Contains(t, got, "Absorbed: (bool) true")
}

func TestGenCmd(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"gen", "-n", "25", "--scale", "10"})
	require.NoError(t, cmd.Execute())

	var n int
	require.NoError(t, readPoints(&out, func(p geom.Vec3) {
		n++
		box := geom.NewBox(geom.Vec3{}, geom.Vec3{X: 10, Y: 10, Z: 10})
		assert.True(t, box.Contains(p), "point %v out of range", p)
	}))
	assert.Equal(t, 25, n)
}
