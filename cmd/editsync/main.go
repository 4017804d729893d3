// Package main is a demonstration driver for the edit synchronization
// engine. It wires an engine to an in-memory authoritative store and runs a
// short scripted session: optimistic edits, an out-of-band remote edit,
// catch-up, then undo and redo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/jjvainav/sprig-sub001/internal/app"
	"github.com/jjvainav/sprig-sub001/internal/config"
	"github.com/jjvainav/sprig-sub001/internal/engine/channel"
	"github.com/jjvainav/sprig-sub001/internal/engine/controller"
	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
)

func main() {
	os.Exit(run())
}

// document is the local model: a flat set of named fields.
type document struct {
	*controller.Base
	fields map[string]string
}

func setField(field, value string) edit.Operation {
	return edit.MustNew("set-field", map[string]string{"field": field, "value": value})
}

func run() int {
	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "editsync.toml", "Path to configuration file")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	level := app.ParseLogLevel(cfg.Log.Level)
	if verbose {
		level = app.LogLevelDebug
	}
	logger := app.NewLogger(os.Stderr, level)

	if err := runSession(configPath, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runSession(configPath string, cfg config.Config, logger *app.Logger) error {
	ctx := context.Background()
	store := newMemoryStore()

	docID := uuid.New().String()
	doc := &document{
		Base:   controller.NewBase("document", docID, 1),
		fields: make(map[string]string),
	}

	engine, err := app.NewEngine(app.Options{
		Model:      doc,
		Dispatcher: store,
		Provider:   store,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	// Pick up history limit changes without a restart.
	watcher, err := config.Watch(configPath, func(next config.Config) {
		engine.SetHistoryLimit(next.History.Limit)
		logger.Infof("configuration reloaded")
	}, func(err error) {
		logger.Warnf("configuration reload failed: %v", err)
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	err = engine.Register("set-field",
		func(ctx context.Context, m controller.Model, op edit.Operation) (controller.ApplyResult, error) {
			field := op.Get("field").String()
			prev := doc.fields[field]
			doc.fields[field] = op.Get("value").String()
			return controller.Applied(op, setField(field, prev)), nil
		},
		store.submitHandler(docID),
	)
	if err != nil {
		return err
	}

	// Log every result flowing through the remote write channel.
	observer := engine.Channel().Observer()
	defer observer.RemoveAll()
	observer.On(func(ctx context.Context, res edit.Result) error {
		logger.WithComponent("channel").Infof("dispatched %s", res.Edit())
		return nil
	})

	// A few optimistic edits.
	for _, step := range [][2]string{
		{"title", "Meeting notes"},
		{"body", "Agenda: sync engine demo"},
	} {
		res, err := engine.PublishEdit(ctx, setField(step[0], step[1]))
		if err != nil {
			return err
		}
		logger.Infof("published %s=%q at revision %d", step[0], step[1], res.Revision)
	}

	// Another actor writes through the channel behind our back.
	remote := engine.Channel().Publisher(channel.WithWaitOnObservers())
	if _, err := remote.Publish(ctx, edit.MustNew("set-field", map[string]string{
		"doc": docID, "field": "title", "value": "Meeting notes (edited remotely)",
	})); err != nil {
		return err
	}

	// Catch up with the edit we missed.
	if err := engine.Synchronize(ctx); err != nil {
		return err
	}
	logger.Infof("after sync: title=%q revision=%d", doc.fields["title"], doc.Revision())

	// Undo our most recent edit, then bring it back.
	if res, err := engine.Undo(ctx); err != nil {
		return err
	} else if res != nil {
		logger.Infof("undid checkpoint %d: body=%q", res.Checkpoint, doc.fields["body"])
	}
	if res, err := engine.Redo(ctx); err != nil {
		return err
	} else if res != nil {
		logger.Infof("redid checkpoint %d: body=%q", res.Checkpoint, doc.fields["body"])
	}

	fmt.Printf("final state: title=%q body=%q revision=%d\n",
		doc.fields["title"], doc.fields["body"], doc.Revision())
	return nil
}
