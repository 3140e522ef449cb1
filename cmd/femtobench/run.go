package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/colorfulnotion/femtobench/bench"
	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/ebpf/recompiler"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/log"
	"github.com/colorfulnotion/femtobench/memctx"
	"github.com/colorfulnotion/femtobench/programs"
	"github.com/colorfulnotion/femtobench/results"
	"github.com/colorfulnotion/femtobench/telemetry"
	"github.com/spf13/cobra"
)

// imageFlags select the program image shared by run and disasm.
type imageFlags struct {
	workload    string
	path        string
	format      string
	programName string
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.workload, "workload", programs.Default, "built-in workload (see femtobench list)")
	cmd.Flags().StringVar(&f.path, "program", "", "program image file; overrides --workload")
	cmd.Flags().StringVar(&f.format, "format", "", "image format: raw, femto or elf (default: detected for files, by mode for workloads)")
	cmd.Flags().StringVar(&f.programName, "program-name", "", "program to pick from an ELF object")
}

// load returns the image, its format and a display name.
func (f *imageFlags) load(def program.Format) ([]byte, program.Format, string, error) {
	format := def
	if f.format != "" {
		parsed, err := program.ParseFormat(f.format)
		if err != nil {
			return nil, 0, "", err
		}
		format = parsed
	}
	if f.path != "" {
		image, err := os.ReadFile(f.path)
		if err != nil {
			return nil, 0, "", err
		}
		if f.format == "" {
			format = program.Detect(image)
		}
		return image, format, f.path, nil
	}
	image, err := programs.Image(f.workload, format)
	if err != nil {
		return nil, 0, "", err
	}
	return image, format, f.workload, nil
}

type runOptions struct {
	image        imageFlags
	iterations   uint32
	mode         string
	context      string
	backend      string
	preExecDelay time.Duration
	jitBuffer    int
	otlpEndpoint string
	archive      string
	label        string
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark and stream one line per iteration to stdout",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("iterations") {
				return nil
			}
			n, err := bench.IterationsFromEnv(bench.DefaultIterations)
			if err != nil {
				return err
			}
			o.iterations = n
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd.Context(), &o, cmd.OutOrStdout())
		},
	}
	o.image.register(cmd)
	cmd.Flags().Uint32Var(&o.iterations, "iterations", bench.DefaultIterations, "number of iterations (default from $"+bench.IterationsEnv+")")
	cmd.Flags().StringVar(&o.mode, "mode", "interp", "execution strategy: interp or jit")
	cmd.Flags().StringVar(&o.context, "context", "libud", "memory context: libud or empty")
	cmd.Flags().StringVar(&o.backend, "backend", "native", "jit backend: native or sandbox")
	cmd.Flags().DurationVar(&o.preExecDelay, "pre-exec-delay", bench.DefaultPreExecDelay, "sleep before each jit execution")
	cmd.Flags().IntVar(&o.jitBuffer, "jit-buffer", recompiler.DefaultJitBufferSize, "jit code buffer capacity in bytes")
	cmd.Flags().StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector for traces (host:port or URL)")
	cmd.Flags().StringVar(&o.archive, "archive", "", "LevelDB archive to record the run in")
	cmd.Flags().StringVar(&o.label, "label", "", "label of the archived run")
	return cmd
}

func (o *runOptions) config() (bench.Config, error) {
	cfg := bench.DefaultConfig()
	cfg.Iterations = o.iterations
	var err error
	if cfg.Strategy, err = bench.ParseStrategy(o.mode); err != nil {
		return cfg, err
	}
	if cfg.Context, err = memctx.ParseKind(o.context); err != nil {
		return cfg, err
	}
	if cfg.Backend, err = recompiler.ParseBackend(o.backend); err != nil {
		return cfg, err
	}
	cfg.PreExecDelay = o.preExecDelay
	cfg.JitBufferSize = o.jitBuffer
	cfg.ProgramName = o.image.programName
	return cfg, nil
}

func runBenchmark(ctx context.Context, o *runOptions, stdout io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}
	image, format, name, err := o.image.load(cfg.Strategy.DefaultFormat())
	if err != nil {
		return err
	}
	cfg.Format = format

	tp, err := telemetry.Setup(ctx, telemetry.Config{Endpoint: o.otlpEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		if serr := tp.Shutdown(context.Background()); serr != nil {
			log.Warn(log.BenchMonitoring, "trace shutdown", "err", serr)
		}
	}()

	clk := clock.New()
	table := helpers.MustBuild(helpers.Defaults(clk))
	prep, err := bench.NewPreparer(cfg, table)
	if err != nil {
		return err
	}

	out := stdout
	var captured bytes.Buffer
	if o.archive != "" {
		out = io.MultiWriter(stdout, &captured)
	}
	runErr := bench.NewDriver(cfg, image, prep, clk, out).Run(ctx)
	if o.archive != "" {
		if aerr := archiveRun(o, cfg, name, &captured); aerr != nil {
			log.Error(log.ResultsMonitoring, "archive failed", "err", aerr)
			if runErr == nil {
				return aerr
			}
		}
	}
	return runErr
}

func archiveRun(o *runOptions, cfg bench.Config, name string, captured io.Reader) error {
	rep, err := results.Parse(captured)
	if err != nil {
		return err
	}
	store, err := results.OpenStore(o.archive)
	if err != nil {
		return err
	}
	defer store.Close()
	label := o.label
	if label == "" {
		label = fmt.Sprintf("%s/%s/%s", name, cfg.Strategy, cfg.Context)
	}
	run := &results.Run{
		Label:      label,
		Strategy:   cfg.Strategy.String(),
		Context:    cfg.Context.String(),
		Program:    name,
		Iterations: cfg.Iterations,
		Complete:   rep.Complete,
		Rows:       rep.Rows,
	}
	if err := store.Put(run); err != nil {
		return err
	}
	log.Info(log.ResultsMonitoring, "run archived", "id", run.ID, "label", run.Label)
	return nil
}
