package main

import (
	"math/rand"

	"github.com/bpt-disk-index/bptidx/dbms/index"
)

// WorkloadType selects the op mix driven against an engine: OLTP leans on
// point reads, OLAP on writes, Reporting sweeps the leaf chain.
type WorkloadType int

const (
	OLTP WorkloadType = iota
	OLAP
	Reporting
)

// readShare is the percentage of point reads in each mixed workload.
var readShare = map[WorkloadType]int{
	OLTP: 90,
	OLAP: 10,
}

// ExecuteWorkload drives ops operations of the given mix, with keys drawn
// uniformly from [0, ops).
func ExecuteWorkload(idx index.Index, mix WorkloadType, ops int) {
	if mix == Reporting {
		rangeSweep(idx, ops)
		return
	}
	reads := readShare[mix]
	record := fillValue("x")
	for i := 0; i < ops; i++ {
		key := int32(rand.Intn(ops))
		if rand.Intn(100) < reads {
			_, _ = idx.Get(key)
			continue
		}
		_ = idx.Insert(key, record)
	}
}

// rangeSweep scans windows of 101 consecutive keys ([lo, lo+100] inclusive)
// from random offsets.
func rangeSweep(idx index.Index, ops int) {
	for i := 0; i < ops; i++ {
		lo := int32(rand.Intn(ops))
		it, err := idx.Range(lo, lo+100)
		if err != nil {
			continue
		}
		for it.Next() {
		}
		it.Close()
	}
}
