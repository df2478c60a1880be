package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hetmem/hetmem/core"
	_ "github.com/hetmem/hetmem/core/comm" // register the in-process collective backend
)

// trainSpec groups the synthetic training run parameters.
type trainSpec struct {
	World       int
	Layers      int
	Hidden      int64
	SteadySteps int
	AccelBytes  int64
	HostBytes   int64
	MetricsAddr string
}

// runTraining drives one warmup step and SteadySteps steady steps of a
// synthetic layered model across World in-process ranks. Every rank runs
// the identical call sequence; the shared process group is the rendezvous.
func runTraining(cfg core.Config, spec trainSpec) error {
	colls := core.NewProcessGroup(spec.World)

	g, ctx := errgroup.WithContext(context.Background())
	for rank := 0; rank < spec.World; rank++ {
		rank := rank
		g.Go(func() error {
			return runRank(ctx, cfg, spec, rank, colls[rank])
		})
	}
	return g.Wait()
}

// runRank is one rank's training loop.
func runRank(ctx context.Context, cfg core.Config, spec trainSpec, rank int, coll core.Collective) error {
	alloc := core.NewSimAllocator(spec.AccelBytes, spec.HostBytes)
	var c core.Collective
	if spec.World > 1 {
		c = coll
	}
	client := core.NewClient(cfg, alloc, c, rank, spec.World)
	client.StartMemTracer(ctx)
	defer client.StopMemTracer()

	if rank == 0 && spec.MetricsAddr != "" {
		serveMetrics(spec.MetricsAddr, client)
	}

	model, err := buildModel(client, spec)
	if err != nil {
		return fmt.Errorf("rank %d: %w", rank, err)
	}

	// Warmup step: the access trace is recorded.
	if err := trainStep(client, model); err != nil {
		return fmt.Errorf("rank %d warmup: %w", rank, err)
	}
	client.SetStage(core.StageSteady)

	for step := 0; step < spec.SteadySteps; step++ {
		client.ResetStep()
		if err := trainStep(client, model); err != nil {
			return fmt.Errorf("rank %d step %d: %w", rank, step, err)
		}
	}

	if rank == 0 {
		client.Metrics().Print(os.Stdout)
	}
	logrus.Infof("[rank %d] run complete: %d chunks, %d evictions",
		rank, client.Chunks().Len(), client.Metrics().Evictions.Load())
	return nil
}

// buildModel registers Layers layers of weight+bias parameters through a
// construction scope, one Register call per layer.
func buildModel(client *core.Client, spec trainSpec) ([][]*core.Param, error) {
	scope := core.NewScope(client)
	model := make([][]*core.Param, spec.Layers)
	for l := 0; l < spec.Layers; l++ {
		weight := scope.NewParam(fmt.Sprintf("layer_%d.weight", l), []int64{spec.Hidden, spec.Hidden}, nil)
		bias := scope.NewParam(fmt.Sprintf("layer_%d.bias", l), []int64{spec.Hidden}, nil)
		if err := scope.Register(fmt.Sprintf("layer_%d", l), weight, bias); err != nil {
			return nil, err
		}
		model[l] = []*core.Param{weight, bias}
	}
	if err := scope.Finalize(); err != nil {
		return nil, err
	}
	return model, nil
}

// trainStep runs one forward sweep and one backward sweep: each layer's
// parameters are accessed on the accelerator, "computed", and released.
// The metronome ticks once per layer access, building the per-moment
// trace that steady-state eviction replays.
func trainStep(client *core.Client, model [][]*core.Param) error {
	touch := func(layer []*core.Param) error {
		for _, p := range layer {
			if err := client.AccessDist(p, core.TierAccelerator); err != nil {
				return err
			}
		}
		client.Tick()
		for _, p := range layer {
			if err := client.Release(p); err != nil {
				return err
			}
		}
		return nil
	}
	for l := 0; l < len(model); l++ { // forward
		if err := touch(model[l]); err != nil {
			return err
		}
	}
	for l := len(model) - 1; l >= 0; l-- { // backward
		if err := touch(model[l]); err != nil {
			return err
		}
	}
	return nil
}
