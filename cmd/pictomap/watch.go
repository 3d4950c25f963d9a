package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/pictomap/internal/bootstrap"
	"github.com/at-ishikawa/pictomap/internal/orchestrator"
	"github.com/at-ishikawa/pictomap/internal/pipeline"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

// resultPrinter serializes output from the initial and the debounced cycles.
type resultPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	err    error
}

func (p *resultPrinter) print(result orchestrator.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if _, err := color.New(color.FgCyan).Fprintf(p.w, "# cycle %d (%s): %d markers\n",
		result.Sequence, result.CycleID, len(result.Markers)); err != nil {
		p.err = err
		return
	}
	if err := writeMarkers(p.w, p.format, result.Markers); err != nil {
		p.err = err
	}
}

func (p *resultPrinter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func newWatchCommand() *cobra.Command {
	var query queryFlags
	format := FormatTable

	command := &cobra.Command{
		Use:   "watch",
		Short: "Follow viewport changes read from stdin, one south,west,north,east box per line",
		Long: `Follow viewport changes read from stdin.

Each line is a bounding box in south,west,north,east order. The first line starts
the map, later lines move it. Updates are debounced by map.debounce and every
applied cycle is printed. Blank lines and lines starting with # are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd.Context())
			if err != nil {
				return err
			}

			printer := &resultPrinter{
				w:      cmd.OutOrStdout(),
				format: format,
			}
			headless := p.NewSurface(query.width, query.height)
			o := p.NewOrchestrator(headless, query.queryOptions(),
				orchestrator.WithOnApplied(printer.print))

			app := bootstrap.New()
			app.AddShutdownHook(func(ctx context.Context) error {
				return p.Close()
			})
			app.AddShutdownHook(func(ctx context.Context) error {
				o.Stop()
				o.Wait()
				return nil
			})

			err = app.Run(cmd.Context(), func(ctx context.Context) error {
				return watch(ctx, cmd.InOrStdin(), headless, o)
			})
			if err != nil {
				return err
			}
			return printer.Err()
		},
	}
	command.Flags().VarP(&format, "format", "o", fmt.Sprintf("output format. Possible values are %v", allFormats))
	query.register(command)
	return command
}

// watch applies each box read from in until in is exhausted or ctx is done.
// The last box is always applied before returning.
func watch(ctx context.Context, in io.Reader, headless *surface.Headless, o *orchestrator.Orchestrator) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	started := false
	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("scanner.Scan > %w", err)
				}
				return flush(ctx, o, pending)
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			bounds, err := pipeline.ParseBBox(line)
			if err != nil {
				slog.Default().Warn("Skipping an invalid bounding box", "line", line, "error", err)
				continue
			}

			headless.SetBounds(bounds)
			if started {
				pending = true
				continue
			}
			if _, err := o.Start(ctx); err != nil {
				return fmt.Errorf("orchestrator.Start > %w", err)
			}
			started = true
		}
	}
}

// flush drops a debounced update that has not fired yet and runs it right away.
func flush(ctx context.Context, o *orchestrator.Orchestrator, pending bool) error {
	o.Stop()
	o.Wait()
	if !pending {
		return nil
	}
	if _, err := o.Update(ctx); err != nil {
		return fmt.Errorf("orchestrator.Update > %w", err)
	}
	return nil
}
