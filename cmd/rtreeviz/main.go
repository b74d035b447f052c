// Command rtreeviz renders a 2-D rtreedb tree as an SVG: one rectangle
// per node, colored by depth, so split shape and overlap can be eyeballed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jakubkucera/rtreedb"
)

func main() {
	treePath := flag.String("tree", "rtree.db", "path to the tree file")
	recordPath := flag.String("record", "rtree.records", "path to the record file")
	dimensions := flag.Int("dimensions", 2, "number of dimensions (must be 2)")
	out := flag.String("out", "rtree.svg", "output SVG path")
	flag.Parse()

	if *dimensions != 2 {
		log.Fatal("rtreeviz only supports 2-dimensional trees")
	}

	e, err := rtreedb.Open(rtreedb.Config{
		TreePath:   *treePath,
		RecordPath: *recordPath,
		Dimensions: *dimensions,
	})
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer e.Close()

	nodes, err := e.Nodes()
	if err != nil {
		log.Fatalf("nodes: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := renderSVG(f, nodes); err != nil {
		log.Fatalf("render: %v", err)
	}
}

func colorForDepth(depth int) string {
	palette := []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b"}
	return palette[depth%len(palette)]
}

func renderSVG(w *os.File, nodes []rtreedb.NodeInfo) error {
	minX, minY, maxX, maxY := int64(0), int64(0), int64(1), int64(1)
	first := true
	for _, n := range nodes {
		if len(n.Box) != 2 {
			continue
		}
		x0, x1 := n.Box[0][0], n.Box[0][1]
		y0, y1 := n.Box[1][0], n.Box[1][1]
		if first {
			minX, maxX, minY, maxY = x0, x1, y0, y1
			first = false
		}
		if x0 < minX {
			minX = x0
		}
		if x1 > maxX {
			maxX = x1
		}
		if y0 < minY {
			minY = y0
		}
		if y1 > maxY {
			maxY = y1
		}
	}
	padX := (maxX - minX) / 20
	padY := (maxY - minY) / 20
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = 1
	}
	minX -= padX
	maxX += padX
	minY -= padY
	maxY += padY
	width, height := maxX-minX, maxY-minY

	if _, err := fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%d %d %d %d">`+"\n",
		minX, minY, width, height); err != nil {
		return err
	}
	for _, n := range nodes {
		if len(n.Box) != 2 {
			continue
		}
		x0, x1 := n.Box[0][0], n.Box[0][1]
		y0, y1 := n.Box[1][0], n.Box[1][1]
		opacity := 0.15
		if n.Leaf {
			opacity = 0.35
		}
		if _, err := fmt.Fprintf(w, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s" fill-opacity="%.2f" stroke="%s" stroke-width="%d"/>`+"\n",
			x0, y0, x1-x0, y1-y0, colorForDepth(n.Depth), opacity, colorForDepth(n.Depth), 1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, `</svg>`)
	return err
}
