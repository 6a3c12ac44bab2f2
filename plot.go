package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotLatencies renders a grouped bar chart of per-operation latency for each
// engine.
func plotLatencies(results []BenchResult, path string) error {
	ops := []string{"Load", "Workload_OLTP", "Workload_OLAP", "Workload_Range"}
	engines := []string{"MemBPlusTree", "BPlusTree", "Pebble"}

	byKey := make(map[string]int64, len(results))
	for _, r := range results {
		byKey[r.Name+"/"+r.Operation] = r.LatencyNs
	}

	p := plot.New()
	p.Title.Text = "Latency per operation"
	p.Y.Label.Text = "ns/op"

	barWidth := vg.Points(20)
	for i, eng := range engines {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = float64(byKey[eng+"/"+op])
		}
		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Points((float64(i) - float64(len(engines)-1)/2) * 22)
		p.Add(bars)
		p.Legend.Add(eng, bars)
	}
	p.Legend.Top = true
	p.NominalX(ops...)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
