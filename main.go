package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"shape-studio/entities/sculptor"
	"shape-studio/tools/executor"
	"shape-studio/tools/llm"
	"shape-studio/tools/logger"
	"shape-studio/tools/mesh"
	"shape-studio/tools/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// reportError prints the error and, when one is attached, the program that
// caused it
func reportError(w io.Writer, err error) {
	var iterErr *IterationError
	program, ok := "", false
	if errors.As(err, &iterErr) {
		program, ok = iterErr.Program, true
	} else {
		program, ok = executor.ProgramText(err)
	}
	if ok && program != "" {
		fmt.Fprintln(w, "Offending program:")
		for i, line := range strings.Split(program, "\n") {
			fmt.Fprintf(w, "%4d | %s\n", i+1, line)
		}
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "shape-studio",
		Short: "Shape Studio - vision-guided refinement of CSG programs",
		Long: `Shape Studio refines a small Go program that builds a solid with the csg
kernel. Each pass executes the program, renders six views of the result and
asks a vision model for one edit that brings it closer to a target.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default "+defaultConfigFile+" if present)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(
		newRefineCmd(opts, stdout),
		newRenderCmd(opts, stdout),
		newExportCmd(opts, stdout),
		newInitCmd(stdout),
	)
	return cmd
}

func newLogger(stdout io.Writer, verbose bool) *logger.Logger {
	level := logger.LevelInfo
	if verbose {
		level = logger.LevelDebug
	}
	return logger.New(stdout, level, "")
}

func loadConfig(opts *rootOptions) (*Config, error) {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newExecutor(cfg *Config, log *logger.Logger) *executor.Executor {
	return executor.New(executor.Options{
		EntryPoints: cfg.Executor.EntryPoints,
		MeshCells:   cfg.Executor.MeshCells,
		Timeout:     cfg.Executor.Timeout,
	}, log)
}

func newRenderer(cfg *Config, log *logger.Logger) *render.Renderer {
	return render.New(render.Options{Size: cfg.Render.Size, Quality: cfg.Render.Quality}, log)
}

func newRefineCmd(root *rootOptions, stdout io.Writer) *cobra.Command {
	var key string
	flagCfg := &Config{}
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Run the refinement loop against a target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			mergeFlags(cmd, cfg, flagCfg)
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ResolveAPIKey(key); err != nil {
				return err
			}

			log := newLogger(stdout, cfg.Verbose)
			studio, err := buildStudio(cfg, log)
			if err != nil {
				return err
			}
			outcome, err := studio.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "\nRun %s finished %s after %d accepted iterations\n", outcome.RunID, outcome.State, outcome.Accepted)
			fmt.Fprintf(stdout, "Artifacts: %s\n", outcome.Dir)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flagCfg.Program, "program", "p", "", "canonical program file (default "+defaultProgramFile+")")
	f.StringVar(&flagCfg.Seed, "seed", "", "program copied into the canonical file before the run")
	f.StringVarP(&flagCfg.Output, "output", "o", "", "output directory (default "+defaultOutputDir+")")
	f.IntVarP(&flagCfg.MaxIterations, "max-iterations", "n", 0, fmt.Sprintf("accepted iterations before stopping (default %d)", defaultMaxIterations))
	f.StringVar(&flagCfg.Target.Views, "target-views", "", "directory holding the six target views")
	f.StringVar(&flagCfg.Target.Program, "target-program", "", "reference program to render as the target")
	f.StringVar(&flagCfg.Target.Mesh, "target-mesh", "", "reference OBJ mesh to render as the target")
	f.StringVar(&flagCfg.Model.Provider, "provider", "", "model provider: anthropic or openai")
	f.StringVar(&flagCfg.Model.Name, "model", "", "model name")
	f.StringVar(&flagCfg.Model.BaseURL, "base-url", "", "model API base URL")
	f.StringVar(&key, "key", "", "API key (or set ANTHROPIC_API_KEY / OPENAI_API_KEY)")
	f.IntVar(&flagCfg.Executor.MeshCells, "mesh-cells", 0, "grid cells along the longest axis when meshing")
	f.IntVar(&flagCfg.Render.Size, "size", 0, "rendered view size in pixels")
	f.StringVar(&flagCfg.Prompt.Guide, "guide", "", "kernel guide file shown to the model")
	return cmd
}

// mergeFlags copies every flag the user set over the file configuration
func mergeFlags(cmd *cobra.Command, cfg, flags *Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("program", func() { cfg.Program = flags.Program })
	set("seed", func() { cfg.Seed = flags.Seed })
	set("output", func() { cfg.Output = flags.Output })
	set("max-iterations", func() { cfg.MaxIterations = flags.MaxIterations })
	set("target-views", func() { cfg.Target.Views = flags.Target.Views })
	set("target-program", func() { cfg.Target.Program = flags.Target.Program })
	set("target-mesh", func() { cfg.Target.Mesh = flags.Target.Mesh })
	set("provider", func() { cfg.Model.Provider = flags.Model.Provider })
	set("model", func() { cfg.Model.Name = flags.Model.Name })
	set("base-url", func() { cfg.Model.BaseURL = flags.Model.BaseURL })
	set("mesh-cells", func() { cfg.Executor.MeshCells = flags.Executor.MeshCells })
	set("size", func() { cfg.Render.Size = flags.Render.Size })
	set("guide", func() { cfg.Prompt.Guide = flags.Prompt.Guide })
}

// buildStudio wires the process-wide collaborators from cfg
func buildStudio(cfg *Config, log *logger.Logger) (*Studio, error) {
	store := NewProgramStore(cfg.Program)
	if cfg.Seed != "" {
		if err := store.SeedFrom(cfg.Seed); err != nil {
			return nil, &ConfigError{Field: "seed", Err: err}
		}
		log.Info("Seeded %s from %s", cfg.Program, cfg.Seed)
	}

	guide := ""
	if cfg.Prompt.Guide != "" {
		data, err := os.ReadFile(cfg.Prompt.Guide)
		if err != nil {
			return nil, &ConfigError{Field: "prompt.guide", Err: err}
		}
		guide = string(data)
	}

	client, err := llm.New(cfg.Model.Provider, cfg.Model.APIKey, cfg.Model.Name, cfg.Model.BaseURL)
	if err != nil {
		return nil, &ConfigError{Field: "model.provider", Err: err}
	}
	proposer := sculptor.New(client, sculptor.Options{
		Guide:       guide,
		Views:       cfg.Prompt.Views,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	}, log)

	return NewStudio(cfg.StudioConfig(), newExecutor(cfg, log), newRenderer(cfg, log), proposer, store, log)
}

func newRenderCmd(root *rootOptions, stdout io.Writer) *cobra.Command {
	var out string
	var size int
	cmd := &cobra.Command{
		Use:   "render <mesh.obj>",
		Short: "Render the six canonical views of an OBJ mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("size") {
				cfg.Render.Size = size
			}
			m, err := mesh.LoadOBJ(args[0])
			if err != nil {
				return &ConfigError{Field: "mesh", Err: err}
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(args[0]), "images")
			}
			vs, err := newRenderer(cfg, newLogger(stdout, cfg.Verbose)).Render(m, out)
			if err != nil {
				return err
			}
			for _, img := range vs.Images {
				fmt.Fprintf(stdout, "Saved view %s (%s) to %s\n", img.View.Name, img.View.Label, img.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default <mesh dir>/images)")
	cmd.Flags().IntVar(&size, "size", 0, "view size in pixels")
	return cmd
}

func newExportCmd(root *rootOptions, stdout io.Writer) *cobra.Command {
	var out string
	var cells int
	cmd := &cobra.Command{
		Use:   "export <program.go>",
		Short: "Execute a program once and write its mesh as OBJ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mesh-cells") {
				cfg.Executor.MeshCells = cells
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return &ConfigError{Field: "program", Err: err}
			}
			solid, err := newExecutor(cfg, newLogger(stdout, cfg.Verbose)).Execute(cmd.Context(), string(data))
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".obj"
			}
			if err := mesh.SaveOBJ(out, solid.Mesh); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Number of vertices: %d\n", len(solid.Mesh.Vertices))
			fmt.Fprintf(stdout, "Number of triangles: %d\n", len(solid.Mesh.Faces))
			fmt.Fprintf(stdout, "Volume: %.6g\n", solid.Volume())
			fmt.Fprintf(stdout, "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output OBJ path (default <program>.obj)")
	cmd.Flags().IntVar(&cells, "mesh-cells", 0, "grid cells along the longest axis")
	return cmd
}

func newInitCmd(stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config and program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for name, content := range map[string]string{
				defaultConfigFile:  starterConfig,
				defaultProgramFile: starterProgram,
			} {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err == nil && !force {
					fmt.Fprintf(stdout, "Keeping existing %s\n", path)
					continue
				}
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	return cmd
}
