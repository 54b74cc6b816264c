// Package main is the thin cobra entrypoint wiring discovery, compilation,
// emission and execution together. The library packages under internal/
// do the real work; this package only parses flags and calls them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	cuenvconfig "github.com/cuenv/cuenv/internal/config"
	"github.com/cuenv/cuenv/internal/compiler"
	"github.com/cuenv/cuenv/internal/discovery"
	"github.com/cuenv/cuenv/internal/ir"
	"github.com/cuenv/cuenv/internal/manifest"
	"github.com/cuenv/cuenv/internal/secret"
)

// appContext bundles everything a subcommand needs that doesn't vary
// per-invocation: resolved config, logger, secret registry.
type appContext struct {
	cfg       *cuenvconfig.Config
	logger    hclog.Logger
	secrets   *secret.Registry
	evaluator manifest.Evaluator
}

func newAppContext(projectDir string) (*appContext, error) {
	cfg, err := cuenvconfig.Load(projectDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.Logger("cuenv")

	registry := secret.NewRegistry()
	registry.Register(secret.EnvResolver{})
	registry.Register(&secret.ExecResolver{})

	return &appContext{
		cfg:       cfg,
		logger:    logger,
		secrets:   registry,
		evaluator: manifest.NoEvaluator,
	}, nil
}

// compileOptions builds the compiler.Options every subcommand shares,
// pulling the cache-key salts out of resolved config.
func (a *appContext) compileOptions(pipelineName string, changedFiles []string, event string, forkPR bool) compiler.Options {
	return compiler.Options{
		PipelineName: pipelineName,
		ChangedFiles: changedFiles,
		Event:        event,
		Salt:         []byte(a.cfg.SecretSalt),
		PrevSalt:     []byte(a.cfg.SecretSaltPrev),
		ForkPR:       forkPR,
	}
}

// compileProject discovers the named project under rootDir, evaluates its
// manifest, and compiles it into a frozen IR for the requested pipeline.
func (a *appContext) compileProject(rootDir, projectDir, pipelineName string, changedFiles []string, event string, forkPR bool) (*ir.IR, error) {
	roots, err := discovery.Discover(a.logger, rootDir)
	if err != nil {
		return nil, fmt.Errorf("discovering projects: %w", err)
	}
	var selected *discovery.ProjectRoot
	for i := range roots {
		if roots[i].Dir == projectDir {
			selected = &roots[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("no cuenv project found at %s", projectDir)
	}

	m, err := a.evaluator.Eval(selected.ModuleRoot, selected.Dir)
	if err != nil {
		return nil, fmt.Errorf("evaluating manifest: %w", err)
	}

	c := compiler.New(a.secrets)
	doc, err := c.Compile(m, a.compileOptions(pipelineName, changedFiles, event, forkPR))
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}
	return doc, nil
}

func newRootCmd() *cobra.Command {
	var rootDir string

	root := &cobra.Command{
		Use:   "cuenv",
		Short: "Polyglot build and CI orchestration over a compiled task graph",
	}
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "repository root to discover projects under")

	root.AddCommand(newDiscoverCmd(&rootDir))
	root.AddCommand(newPlanCmd(&rootDir))
	root.AddCommand(newRunCmd(&rootDir))
	root.AddCommand(newEmitCmd(&rootDir))
	return root
}

// exitCodeError lets a subcommand report a pipeline failure's process exit
// code without cobra printing a redundant error line for it.
type exitCodeError struct{ ExitCode int }

func (e *exitCodeError) Error() string { return "exit code error" }

func run() int {
	cmd := newRootCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode
		}
		fmt.Fprintf(os.Stderr, "cuenv: %v\n", err)
		return 1
	}
	return 0
}
