package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpt-disk-index/bptidx/dbms/bptree"
	"github.com/bpt-disk-index/bptidx/dbms/index"
	"github.com/bpt-disk-index/bptidx/dbms/index/lsm"
	"github.com/bpt-disk-index/bptidx/dbms/index/memtree"
)

// BenchResult is one engine/operation measurement.
type BenchResult struct {
	Name      string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

func (r BenchResult) csvRow() []string {
	return []string{
		r.Name,
		r.Operation,
		strconv.FormatInt(r.LatencyNs, 10),
		strconv.FormatUint(r.MemMB, 10),
		strconv.FormatUint(r.Objects, 10),
	}
}

// sampleHeap reports live heap megabytes and object count after a forced
// collection, so transient garbage doesn't inflate the numbers.
func sampleHeap() (liveMB, objects uint64) {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc >> 20, m.HeapObjects
}

func newBenchCmd() *cobra.Command {
	var scale int
	var outDir string
	cmd := &cobra.Command{
		Use:           "bench",
		Short:         "Benchmark the B+ tree against Pebble",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}
			f, err := os.Create(filepath.Join(outDir, "results.csv"))
			if err != nil {
				return err
			}
			defer f.Close()
			w := csv.NewWriter(f)
			w.Write([]string{"Structure", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

			var results []BenchResult

			results = append(results, runSuite(cmd, w, "MemBPlusTree", memtree.New(), scale)...)

			treePath := filepath.Join(outDir, "bench.idx")
			tree, err := bptree.Open(treePath)
			if err != nil {
				return err
			}
			results = append(results, runSuite(cmd, w, "BPlusTree", tree, scale)...)
			os.Remove(treePath)

			lsmDir := filepath.Join(outDir, "bench-pebble")
			l, err := lsm.Open(lsmDir)
			if err != nil {
				return err
			}
			results = append(results, runSuite(cmd, w, "Pebble", l, scale)...)
			os.RemoveAll(lsmDir)

			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
			if err := plotLatencies(results, filepath.Join(outDir, "latency.png")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Benchmark complete. Data ready for analysis.")
			return nil
		},
	}
	cmd.Flags().IntVar(&scale, "scale", 100000, "keys to load per engine")
	cmd.Flags().StringVar(&outDir, "out", "results", "output directory")
	return cmd
}

// runSuite loads the engine with n sequential keys, then times the mixed
// workloads against the loaded state. Rows go to the CSV as they land.
func runSuite(cmd *cobra.Command, w *csv.Writer, name string, idx index.Index, n int) []BenchResult {
	defer idx.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "Testing %s\n", name)

	var results []BenchResult
	timed := func(op string, ops int, keepObjects bool, fn func()) {
		start := time.Now()
		fn()
		per := time.Since(start).Nanoseconds() / int64(ops)
		liveMB, objects := sampleHeap()
		if !keepObjects {
			objects = 0
		}
		r := BenchResult{Name: name, Operation: op, LatencyNs: per, MemMB: liveMB, Objects: objects}
		w.Write(r.csvRow())
		results = append(results, r)
	}

	record := fillValue("benchmark payload")
	timed("Load", n, true, func() {
		for k := 0; k < n; k++ {
			_ = idx.Insert(int32(k), record)
		}
	})
	timed("Workload_OLTP", n/2, false, func() { ExecuteWorkload(idx, OLTP, n/2) })
	timed("Workload_OLAP", n/2, false, func() { ExecuteWorkload(idx, OLAP, n/2) })
	timed("Workload_Range", 100, false, func() { ExecuteWorkload(idx, Reporting, 100) })

	return results
}
