// Command spartdemo builds a quadtree over randomly generated points, runs
// a kNN and a range query against it, and, when -save is set, round-trips
// it through Save/Load first to exercise the binary format. Every other
// -kind value exits with an error.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/quadtree"
)

var (
	kindFlag     = flag.String("kind", "quadtree", "index kind; only quadtree is accepted")
	countFlag    = flag.Int("n", 1000, "number of random points to insert")
	capacityFlag = flag.Int("capacity", 8, "per-node capacity for tree-structured indexes")
	kFlag        = flag.Int("k", 5, "number of neighbours for the kNN query")
	savePathFlag = flag.String("save", "", "if set, save the index here and reload it before querying")
)

func main() {
	flag.Parse()

	if *kindFlag != "quadtree" {
		fmt.Printf("kind %q is not wired into this demo yet; only quadtree is\n", *kindFlag)
		os.Exit(1)
	}

	boundary := quadtree.Boundary{X: 0, Y: 0, Width: 1000, Height: 1000}
	tree, err := quadtree.New(boundary, *capacityFlag)
	if err != nil {
		fmt.Printf("building tree: %s\n", err)
		os.Exit(1)
	}

	pts := make([]quadtree.Point, *countFlag)
	for i := range pts {
		pts[i] = quadtree.Point{
			X:    rand.Float64() * boundary.Width,
			Y:    rand.Float64() * boundary.Height,
			Data: payload.Int(int64(i)),
		}
	}
	tree.InsertBulk(pts)
	fmt.Printf("inserted %d points\n", len(pts))

	if *savePathFlag != "" {
		f, err := os.Create(*savePathFlag)
		if err != nil {
			fmt.Printf("creating save file: %s\n", err)
			os.Exit(1)
		}
		err = tree.Save(f)
		closeErr := f.Close()
		if err != nil {
			fmt.Printf("saving tree: %s\n", err)
			os.Exit(1)
		}
		if closeErr != nil {
			fmt.Printf("closing save file: %s\n", closeErr)
			os.Exit(1)
		}

		rf, err := os.Open(*savePathFlag)
		if err != nil {
			fmt.Printf("reopening save file: %s\n", err)
			os.Exit(1)
		}
		defer rf.Close()
		tree, err = quadtree.Load(rf)
		if err != nil {
			fmt.Printf("loading tree: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("reloaded tree from %s\n", *savePathFlag)
	}

	qx, qy := boundary.Width/2, boundary.Height/2
	neighbours, err := tree.KNNSearch(qx, qy, *kFlag)
	if err != nil {
		fmt.Printf("kNN query: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d nearest neighbours of (%.1f, %.1f):\n", len(neighbours), qx, qy)
	for _, p := range neighbours {
		fmt.Printf("  (%.2f, %.2f) data=%d\n", p.X, p.Y, p.Data.Int())
	}

	inRange, err := tree.RangeSearch(qx, qy, 50)
	if err != nil {
		fmt.Printf("range query: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d points within radius 50 of (%.1f, %.1f)\n", len(inRange), qx, qy)
}
