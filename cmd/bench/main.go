// Command bench measures cell propagation cost across dependency graphs
// of varying width and depth.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/cellwire/cellgraph/reactive"
)

const iterationsKey = "iterations"

// widths and depths are the fixed set of graph shapes swept on every run.
var (
	widths = []int{1, 10, 100}
	depths = []int{1, 10, 100}
)

func main() {
	cmd := &cli.Command{
		Name:  "bench",
		Usage: "Benchmark reactive cell propagation across graph shapes",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "number of timed writes to the source cell, per shape",
				Value: 1000,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(iterationsKey))

	log.Printf("benchmarking reactive cell propagation (%s iterations per shape)", humanize.Comma(int64(iters)))

	tbl := table.NewWriter()
	tbl.SetTitle("reactive cell propagation")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"width", "depth", "avg", "p75", "p99", "max"})

	for _, w := range widths {
		for _, d := range depths {
			benchmarkShape(tbl, w, d, iters)
		}
	}

	tbl.Render()
	return nil
}

// benchmarkShape builds width independent chains of depth derived cells
// off a single source cell, times iters sequential writes to the source,
// and appends the resulting latency distribution as a table row.
func benchmarkShape(tbl table.Writer, width, depth, iters int) {
	rt := reactive.NewRuntime(func(cell any, err error) {
		log.Printf("bench: eager cell error: %v", err)
	})
	src := reactive.New(rt, reactive.Options[int]{Value: 1})

	for i := 0; i < width; i++ {
		var prev *reactive.Cell[int] = src
		for j := 0; j < depth; j++ {
			p := prev
			prev = reactive.New(rt, reactive.Options[int]{Def: func(int) (int, error) {
				v, err := p.Rv()
				return v + 1, err
			}})
		}
		terminal := prev
		reactive.New(rt, reactive.Options[int]{Eager: true, Def: func(int) (int, error) {
			return terminal.Rv()
		}})
	}

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	for i := 0; i < iters; i++ {
		start := time.Now()
		src.WvFn(func(prev int) int { return prev + 1 })
		<-rt.Wait()
		tach.AddTime(time.Since(start))
	}

	calc := tach.Calc()
	tbl.AppendRows([]table.Row{{
		width, depth, calc.Time.Avg, calc.Time.P75, calc.Time.P99, calc.Time.Max,
	}})
}
