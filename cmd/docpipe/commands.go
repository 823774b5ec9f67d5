package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/references"
	"github.com/urfave/cli/v2"
)

const waitPollInterval = 200 * time.Millisecond

func openPipeline(c *cli.Context) (*docpipe.Pipeline, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	p, err := docpipe.Open(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return p, cfg, nil
}

func runCommand(c *cli.Context) error {
	owner := c.String("owner")
	dir := c.String("watch")
	if dir != "" && owner == "" {
		return errors.New("--watch requires --owner")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cfg, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	// Background tasks finish before the pipeline closes.
	ctx, cancel := context.WithCancel(ctx)
	var bg sync.WaitGroup
	defer bg.Wait()
	defer cancel()

	workers := c.Int("workers")
	if workers <= 0 {
		workers = cfg.Worker.Count
	}
	group, err := p.NewGroup(workers)
	if err != nil {
		return err
	}
	if err := group.Start(ctx); err != nil {
		return err
	}
	defer group.Stop()

	if cfg.Reaper.Enabled || c.Bool("reaper") {
		reaper, err := p.NewReaper(docpipe.ReaperConfig(cfg.Reaper))
		if err != nil {
			return err
		}
		bg.Go(func() { reaper.Run(ctx) })
	}

	if owner != "" {
		conn := notify.NewChannelConn(64)
		p.Notifications().Register(owner, conn)
		defer p.Notifications().Unregister(owner, conn)
		bg.Go(func() { printNotifications(ctx, c.App.Writer, conn) })
	}

	if dir != "" {
		watcher := newDirWatcher(p, owner, slog.Default())
		bg.Go(func() {
			if err := watcher.Run(ctx, dir); err != nil && ctx.Err() == nil {
				slog.Error("directory watch stopped", "dir", dir, "err", err)
			}
		})
	}

	slog.Info("workers running", "count", group.Size(), "config", c.String("config"))
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func printNotifications(ctx context.Context, w io.Writer, conn *notify.ChannelConn) {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Messages():
			if !ok {
				return
			}
			if err := enc.Encode(msg); err != nil {
				slog.Warn("failed to write notification", "err", err)
				return
			}
		}
	}
}

func enqueueCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	ctx := c.Context

	p, cfg, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var docs []*core.Document
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := p.Upload(ctx, c.String("owner"), filepath.Base(path), data, c.String("mime"))
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", doc.ID, doc.JobID, doc.FileName)
		docs = append(docs, doc)
	}

	if !c.Bool("wait") {
		return nil
	}

	group, err := p.NewGroup(min(cfg.Worker.Count, len(docs)))
	if err != nil {
		return err
	}
	if err := group.Start(ctx); err != nil {
		return err
	}
	defer group.Stop()

	var failed int
	for _, doc := range docs {
		status, err := p.WaitForDocument(ctx, doc.OwnerID, doc.ID, waitPollInterval)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%d chunks", status.DocumentID, status.Status, status.ChunkCount)
		if status.Error != "" {
			fmt.Fprintf(c.App.Writer, "\t%s", status.Error)
			failed++
		}
		fmt.Fprintln(c.App.Writer)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one id is required")
	}
	id := c.Args().First()

	p, _, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var view any
	if c.Bool("doc") {
		if c.String("owner") == "" {
			return errors.New("--doc requires --owner")
		}
		view, err = p.DocumentStatus(c.Context, c.String("owner"), id)
	} else {
		view, err = p.JobStatus(c.Context, id)
	}
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, view)
}

func listCommand(c *cli.Context) error {
	p, _, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	docs, err := p.ListDocuments(c.Context, c.String("owner"))
	if err != nil {
		return err
	}
	return writeDocuments(c.App.Writer, docs)
}

func writeDocuments(w io.Writer, docs []*core.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCHUNKS\tCREATED\tERROR")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID, d.FileName, d.ProcessingStatus, d.ChunkCount, d.CreatedAt.Format(time.RFC3339), d.ErrorMessage)
	}
	return tw.Flush()
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	p, _, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Search(c.Context, c.String("owner"), query)
	if err != nil {
		return err
	}
	writeResult(c.App.Writer, result, c.Bool("context"))
	return nil
}

func writeResult(w io.Writer, result references.Result, withContext bool) {
	if !result.HasReferences {
		fmt.Fprintln(w, "No relevant documents found.")
		return
	}
	if withContext {
		fmt.Fprintln(w, result.DocumentContext)
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, references.FormatReferences(result.SourceDocuments))
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one document id is required")
	}

	p, _, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.DeleteDocument(c.Context, c.String("owner"), c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.Args().First())
	return nil
}

func reprocessCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one document id is required")
	}

	p, _, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	doc, err := p.Reprocess(c.Context, c.String("owner"), c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", doc.ID, doc.JobID, doc.FileName)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
