// Command sexpflow is the CLI entry point for the evaluator runtime,
// grounded on _examples/kadirpekel-hector/cmd/hector/main.go's kong-based
// CLI struct, trimmed to the three subcommands SPEC_FULL.md §A names:
// eval, validate, version. There is no `serve` subcommand — HTTP
// transport is an explicit Non-goal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/alecthomas/kong"

	appconfig "github.com/hoidn/sexpflow/config"
	"github.com/hoidn/sexpflow/evaluator"
	"github.com/hoidn/sexpflow/handler"
	"github.com/hoidn/sexpflow/logger"
	"github.com/hoidn/sexpflow/parser"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/tools"

	ctxpkg "github.com/hoidn/sexpflow/context"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Eval     EvalCmd     `cmd:"" help:"Parse and evaluate one S-expression."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("sexpflow version %s\n", version)
	return nil
}

// ValidateCmd parses a YAML config file and reports errors, never
// starting the runtime.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("validate requires --config")
	}
	cfg, err := appconfig.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := appconfig.Validate(cfg); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", cli.Config)
	return nil
}

// EvalCmd parses and evaluates one S-expression from an argument or
// stdin, the minimal ambient entrypoint SPEC_FULL.md §D allows beyond the
// evaluator core itself.
type EvalCmd struct {
	Expr string `arg:"" optional:"" help:"S-expression to evaluate. Reads stdin if omitted."`
}

func (c *EvalCmd) Run(cli *CLI) error {
	src := c.Expr
	if src == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		src = string(data)
	}

	cfg := appconfig.Default()
	if cli.Config != "" {
		loaded, err := appconfig.Load(cli.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	rt, cleanup, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	node, err := parser.Parse(src)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	v, err := rt.eval.Eval(node, rt.env)
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}
	fmt.Println(sexpr.Repr(v))
	return nil
}

// runtime bundles the wired evaluator core used by EvalCmd. The Dispatcher
// (spec.md §4.10) wraps this same Executor/ToolReg/Evaluator trio for
// callers that want name-based identifier(params, flags) dispatch instead
// of evaluating raw S-expression source; see package dispatcher.
type runtime struct {
	eval    *evaluator.Evaluator
	env     *sexpr.Environment
	watcher *task.DirWatcher
}

func buildRuntime(cfg appconfig.Config) (*runtime, func(), error) {
	reg := task.NewRegistry()
	toolReg := tools.NewRegistry()
	ctxSubsystem := ctxpkg.NoopSubsystem{}
	exec := task.NewExecutor(reg, handler.Stub{}, ctxSubsystem)

	shellCfg := tools.ShellConfig{
		WorkingDirectory: cfg.Shell.WorkingDirectory,
		Timeout:          time.Duration(cfg.Shell.TimeoutSeconds) * time.Second,
		AllowedCommands:  cfg.Shell.AllowedCommands,
	}
	shellSpec, shellExec := tools.NewShellTool(shellCfg)
	if err := toolReg.Register(shellSpec, shellExec); err != nil {
		return nil, nil, err
	}

	fileCfg := tools.FileConfig{RootDir: cfg.File.RootDir, MaxBytesEach: cfg.File.MaxBytesEach}
	fileSpec, fileExec := tools.NewFileTool(fileCfg)
	if err := toolReg.Register(fileSpec, fileExec); err != nil {
		return nil, nil, err
	}

	logSpec, logExec := tools.NewLogTool(logger.Get())
	if err := toolReg.Register(logSpec, logExec); err != nil {
		return nil, nil, err
	}

	var watcher *task.DirWatcher
	if cfg.Tasks.TemplateDir != "" {
		if cfg.Tasks.Watch {
			watcher = task.NewDirWatcher(cfg.Tasks.TemplateDir, reg)
			if err := watcher.Start(context.Background()); err != nil {
				return nil, nil, fmt.Errorf("starting template directory watcher: %w", err)
			}
		} else if _, err := task.LoadTemplateDir(cfg.Tasks.TemplateDir, reg); err != nil {
			logger.Get().Warn("template directory load had errors", "error", err)
		}
	}

	ev := evaluator.New(exec, toolReg, ctxSubsystem)
	env := ev.NewGlobalEnv()

	cleanup := func() {
		if watcher != nil {
			watcher.Close()
		}
	}
	return &runtime{eval: ev, env: env, watcher: watcher}, cleanup, nil
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("sexpflow"),
		kong.Description("sexpflow — S-expression evaluator and task orchestration runtime"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
