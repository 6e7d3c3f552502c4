// storebench drives the flat and paged stores under a profiler.
//
// Profiling:
//
//	go build ./cmd/storebench
//	./storebench paged --workers 8 --profile cpu
//	go tool pprof -http=":8000" ./storebench cpu.pprof
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/lowengine/lowgo/internal/core/store"
)

type record struct {
	Position [3]float32
	Velocity [3]float32
	Tag      string
}

const benchType = 1

type options struct {
	profile string
	path    string
	records int
	rounds  int
	workers int
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "storebench",
		Short:         "profile handle store workloads",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.profile, "profile", "none", "profile kind: cpu, mem, mutex or none")
	root.PersistentFlags().StringVar(&opts.path, "path", ".", "directory for profile output")
	root.PersistentFlags().IntVar(&opts.records, "records", 10000, "records made per round")
	root.PersistentFlags().IntVar(&opts.rounds, "rounds", 50, "make/destroy rounds")

	flat := &cobra.Command{
		Use:   "flat",
		Short: "single goroutine make/iterate/destroy on a flat store",
		RunE: func(_ *cobra.Command, _ []string) error {
			return profiled(opts, func() { runFlat(opts) })
		},
	}
	paged := &cobra.Command{
		Use:   "paged",
		Short: "concurrent make/update/destroy on a paged store",
		RunE: func(_ *cobra.Command, _ []string) error {
			return profiled(opts, func() { runPaged(opts) })
		},
	}
	paged.Flags().IntVar(&opts.workers, "workers", 8, "goroutines sharing the store")

	root.AddCommand(flat, paged)
	return root
}

// profiled runs fn under the requested profiler and prints the elapsed time.
func profiled(opts *options, fn func()) error {
	var mode func(*profile.Profile)
	switch opts.profile {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	case "mutex":
		mode = profile.MutexProfile
	case "none", "":
	default:
		return fmt.Errorf("unknown profile kind %q", opts.profile)
	}

	start := time.Now()
	if mode != nil {
		p := profile.Start(mode, profile.ProfilePath(opts.path), profile.NoShutdownHook, profile.Quiet)
		defer p.Stop()
	}
	fn()
	fmt.Printf("%d rounds x %d records in %s\n", opts.rounds, opts.records, time.Since(start))
	return nil
}

func runFlat(opts *options) {
	s := store.NewFlat[record](benchType, "Bench", uint32(opts.records/4), nil)
	handles := make([]store.Handle, 0, opts.records)
	for range opts.rounds {
		for i := range opts.records {
			handles = append(handles, s.Make(func(r *record) { r.Velocity = [3]float32{float32(i), 1, 0} }))
		}
		s.Each(func(_ store.Handle, r *record) {
			for k := range r.Position {
				r.Position[k] += r.Velocity[k]
			}
		})
		for _, h := range handles {
			s.Destroy(h)
		}
		handles = handles[:0]
	}
}

func runPaged(opts *options) {
	s := store.NewPaged[record](benchType, "Bench", uint32(opts.records/4), nil)
	workers := max(opts.workers, 1)
	per := opts.records / workers
	for range opts.rounds {
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				handles := make([]store.Handle, 0, per)
				for i := range per {
					handles = append(handles, s.Make(func(r *record) { r.Velocity = [3]float32{float32(i), 1, 0} }))
				}
				for _, h := range handles {
					s.Update(h, func(r *record) {
						for k := range r.Position {
							r.Position[k] += r.Velocity[k]
						}
					})
				}
				for _, h := range handles {
					s.Destroy(h)
				}
			}()
		}
		wg.Wait()
	}
}
