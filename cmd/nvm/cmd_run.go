package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Myriagram/nvm"
	"github.com/Myriagram/nvm/internal/storage"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

type runOptions struct {
	lineOffset int
	inject     bool
	typescript bool
	watch      bool
	stats      bool
	store      string
	dbPath     string
	scope      string
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a contract script and print its result",
		Long: `Run compiles the file as the body of a function and prints the JSON
serialization of its return value. Files ending in .ts are transpiled first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hooks, closeHooks, err := openHooks(opts.store, opts.dbPath, opts.scope)
			if err != nil {
				return err
			}
			defer closeHooks()

			path := args[0]
			if !opts.watch {
				return runFile(cmd, path, opts, hooks)
			}
			diag := newPrinter(cmd.ErrOrStderr())
			return watchFile(cmd.Context(), path, diag, func() {
				if err := runFile(cmd, path, opts, hooks); err != nil && !errors.Is(err, errReported) {
					diag.failure(err)
				}
			})
		},
	}

	cmd.Flags().IntVar(&opts.lineOffset, "line-offset", 0, "Added to reported line numbers")
	cmd.Flags().BoolVar(&opts.inject, "inject", false, "Insert instruction counting calls before running")
	cmd.Flags().BoolVar(&opts.typescript, "typescript", false, "Transpile from TypeScript regardless of extension")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Rerun whenever the file changes")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print instruction and memory usage")
	cmd.Flags().StringVar(&opts.store, "storage", "memory", "Contract storage: memory or sqlite")
	cmd.Flags().StringVar(&opts.dbPath, "db", filepath.Join(".nvm", "storage.sqlite3"), "sqlite database path")
	cmd.Flags().StringVar(&opts.scope, "scope", "contract", "Local storage scope in the sqlite database")
	return cmd
}

// runFile runs one file on a fresh engine; a terminated engine cannot be
// reused, so reruns never share one.
func runFile(cmd *cobra.Command, path string, opts runOptions, hooks nvm.HostHooks) error {
	out := newPrinter(cmd.OutOrStdout())
	diag := newPrinter(cmd.ErrOrStderr())

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	events := &storage.EventLog{}
	e, closeEngine, err := openEngine(cmd, nvm.WithEventSink(events))
	if err != nil {
		return err
	}
	defer closeEngine()

	code, offset := string(src), opts.lineOffset
	if opts.typescript || strings.HasSuffix(path, ".ts") {
		js, off, err := e.TranspileTypeScriptModule(code)
		if err != nil {
			return reportFailure(diag, path, err)
		}
		code, offset = js, offset+off
	}
	if opts.inject {
		js, off, err := e.InjectTracingInstructions(code)
		if err != nil {
			return reportFailure(diag, path, err)
		}
		code, offset = js, offset+off
	}

	result, err := e.RunScriptSource(code, offset, hooks)
	out.events(events.Events())
	if opts.stats {
		diag.stats(e.Stats())
	}
	if err != nil {
		return reportFailure(diag, path, err)
	}
	out.result(result)
	return nil
}

// reportFailure prints err against the file the user named.
func reportFailure(p *printer, path string, err error) error {
	var ee *nvm.ExecutionError
	if errors.As(err, &ee) && ee.Record != nil {
		rec := *ee.Record
		rec.Resource = path
		ee = &nvm.ExecutionError{Kind: ee.Kind, Record: &rec, Cause: ee.Cause}
		err = ee
	}
	p.failure(err)
	return errReported
}

const watchDebounce = 100 * time.Millisecond

// watchFile calls run once and then after every change to path until ctx is
// done. The directory is watched so editors that replace the file on save
// are followed.
func watchFile(ctx context.Context, path string, p *printer, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	p.info("watching " + target)

	trigger := make(chan struct{}, 1)
	timer := time.AfterFunc(watchDebounce, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.warn("watcher: " + err.Error())
		case <-trigger:
			run()
		}
	}
}
