package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xsortlib/go-xsort"
	"github.com/xsortlib/go-xsort/config"
	"github.com/xsortlib/go-xsort/file"
	"github.com/xsortlib/go-xsort/file/mmap"
	"github.com/xsortlib/go-xsort/file/simdisk"
	"github.com/xsortlib/go-xsort/file/syscall"
	"github.com/xsortlib/go-xsort/internal/logging"
	"github.com/xsortlib/go-xsort/merge"
)

func main() {
	var (
		sizeStr   = flag.String("elements", "1M", "Number of uint64 elements to sort (e.g., 100K, 1M)")
		numDisks  = flag.Int("disks", 4, "Number of simulated disks when -config is unset")
		cfgPath   = flag.String("config", "", "Path to a disk config file (defaults to STXXLCFG or ./.stxxl)")
		pqueueLen = flag.Int("pqueue", 10000, "Number of elements to push through the priority queue demo")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	n, err := parseCount(*sizeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -elements '%s': %v\n", *sizeStr, err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	rt, cleanup, err := openRuntime(*cfgPath, *numDisks, logger)
	if err != nil {
		logger.Error("failed to open runtime", "error", err)
		os.Exit(1)
	}
	defer cleanup()
	defer rt.Close()

	runDemoSort(rt, logger, n)
	runDemoPriorityQueue(rt, logger, *pqueueLen)
}

// openRuntime builds a Runtime either from a disk config file (one real
// backend per configured disk) or, absent one, from in-memory simdisk
// disks sized for the demo.
func openRuntime(cfgPath string, numDisks int, logger *logging.Logger) (*xsort.Runtime, func(), error) {
	opts := xsort.DefaultOptions()
	opts.Logger = logger

	if cfgPath == "" {
		if _, err := os.Stat(config.ResolvePath()); err == nil {
			cfgPath = config.ResolvePath()
		}
	}

	if cfgPath != "" {
		disks, err := config.Load(cfgPath)
		if err != nil {
			return nil, func() {}, fmt.Errorf("loading config %s: %w", cfgPath, err)
		}
		logger.Info("loaded disk config", "path", cfgPath, "disks", len(disks))

		openers := map[string]xsort.BackendOpener{
			"simdisk": func(d config.Disk) (file.File, error) {
				return simdisk.New(d.CapacityBytes()), nil
			},
			"syscall": func(d config.Disk) (file.File, error) {
				f, err := syscall.Open(d.Path)
				if err != nil {
					return nil, err
				}
				if err := f.SetSize(d.CapacityBytes()); err != nil {
					return nil, err
				}
				return f, nil
			},
			"mmap": func(d config.Disk) (file.File, error) {
				return mmap.Open(d.Path, d.CapacityBytes())
			},
		}

		rt, err := xsort.OpenConfig(disks, openers, opts)
		if err != nil {
			return nil, func() {}, err
		}
		return rt, func() {}, nil
	}

	logger.Info("no disk config found, using in-memory simdisk disks", "count", numDisks)
	files := make([]file.File, numDisks)
	sizes := make([]int64, numDisks)
	autogrow := make([]bool, numDisks)
	for i := range files {
		files[i] = simdisk.New(256 << 20)
		sizes[i] = 256 << 20
		autogrow[i] = false
	}
	rt, err := xsort.NewRuntime(files, sizes, autogrow, opts)
	return rt, func() {}, err
}

var uint64Codec = demoCodec{}

type demoCodec struct{}

func (demoCodec) Size() int                   { return 8 }
func (demoCodec) Encode(v uint64, dst []byte) { binary.LittleEndian.PutUint64(dst, v) }
func (demoCodec) Decode(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

var uint64Cmp = merge.Comparator[uint64]{
	Less: func(a, b uint64) bool { return a < b },
	Max:  func() uint64 { return ^uint64(0) },
}

func runDemoSort(rt *xsort.Runtime, logger *logging.Logger, n int) {
	logger.Info("generating input", "elements", n)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	values := make([]uint64, n)
	for i := range values {
		values[i] = rng.Uint64()
	}

	runSize := n / 20
	if runSize < 16 {
		runSize = 16
	}

	start := time.Now()
	run, err := xsort.SortSlice(rt, values, runSize, uint64Cmp, uint64Codec)
	if err != nil {
		logger.Error("sort failed", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	logger.Info("sort complete", "elements", run.NumElems, "elapsed", elapsed.String())

	sorted, err := xsort.Collect(rt, run, uint64Codec)
	if err != nil {
		logger.Error("collect failed", "error", err)
		os.Exit(1)
	}
	if !sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i] < sorted[j] }) {
		logger.Error("sort output is not sorted")
		os.Exit(1)
	}
	fmt.Printf("sorted %d elements in %s\n", len(sorted), elapsed)
}

func runDemoPriorityQueue(rt *xsort.Runtime, logger *logging.Logger, n int) {
	pq := xsort.NewPriorityQueue(rt, uint64Cmp, uint64Codec, 1024)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	logger.Info("pushing elements into priority queue", "count", n)
	for i := 0; i < n; i++ {
		if err := pq.Push(rng.Uint64() % 1_000_000); err != nil {
			logger.Error("push failed", "error", err)
			os.Exit(1)
		}
	}

	popped := 0
	var prev uint64
	first := true
	for !pq.Empty() {
		v, err := pq.Pop()
		if err != nil {
			logger.Error("pop failed", "error", err)
			os.Exit(1)
		}
		if !first && v > prev {
			logger.Error("priority queue returned out-of-order element", "prev", prev, "got", v)
			os.Exit(1)
		}
		prev = v
		first = false
		popped++
	}
	fmt.Printf("priority queue drained %d elements in descending order\n", popped)
}

// parseCount parses a count string like "1M", "64K", "500" into an int.
func parseCount(s string) (int, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		numStr = strings.TrimSuffix(s, "M")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return int(num * multiplier), nil
}
