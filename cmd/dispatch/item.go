package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ItemCommands struct {
	EnqueueJob   EnqueueJobCommand   `cmd:"" name:"enqueue-job" help:"Enqueue a media-proxy job." group:"ITEM"`
	EnqueueBatch EnqueueBatchCommand `cmd:"" name:"enqueue-batch" help:"Enqueue an event batch from stdin or a file." group:"ITEM"`
	ListItems    ListItemsCommand    `cmd:"" name:"items" help:"List items with optional filters." group:"ITEM"`
	GetItem      GetItemCommand      `cmd:"" name:"item" help:"Get an item." group:"ITEM"`
	Expire       ExpireCommand       `cmd:"" name:"expire" help:"Reclaim stale leases now." group:"ITEM"`
}

type EnqueueJobCommand struct {
	URL     string `arg:"" name:"url" help:"Database URL"`
	AssetId string `arg:"" name:"asset" help:"Asset identifier"`
	Path    string `arg:"" name:"path" help:"Source media path"`
	Profile string `name:"profile" help:"Rendition profile"`
}

type EnqueueBatchCommand struct {
	URL    string `arg:"" name:"url" help:"Database URL"`
	Source string `arg:"" name:"source" help:"Event source tag"`
	File   string `name:"file" help:"Read lines from a file instead of stdin"`
}

type ListItemsCommand struct {
	URL    string `arg:"" name:"url" help:"Database URL"`
	Queue  string `name:"queue" help:"Filter by queue name"`
	Status string `name:"status" help:"Filter by status (pending, claimed, completed, failed)"`
	Offset uint64 `name:"offset" help:"Pagination offset" default:"0"`
	Limit  uint64 `name:"limit" help:"Pagination limit" default:"100"`
}

type GetItemCommand struct {
	URL string `arg:"" name:"url" help:"Database URL"`
	Id  uint64 `arg:"" name:"id" help:"Item ID"`
}

type ExpireCommand struct {
	URL     string        `arg:"" name:"url" help:"Database URL"`
	Queue   string        `arg:"" name:"queue" help:"Queue name"`
	Timeout time.Duration `name:"timeout" help:"Reclaim leases with heartbeats older than this" default:"5m"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *EnqueueJobCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Enqueue the job
	item, err := manager.Enqueue(ctx.ctx, schema.QueueProxy, schema.ItemMeta{
		Payload: catalog.ProxyJob{
			AssetId: cmd.AssetId,
			Path:    cmd.Path,
			Profile: cmd.Profile,
		},
	})
	if err != nil {
		return err
	}

	// Print
	fmt.Println(item)
	return nil
}

func (cmd *EnqueueBatchCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Read lines from the file or stdin
	in := os.Stdin
	if cmd.File != "" {
		if in, err = os.Open(cmd.File); err != nil {
			return err
		}
		defer in.Close()
	}
	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Enqueue the batch with a generated batch id
	item, err := manager.Enqueue(ctx.ctx, schema.QueueIngest, schema.ItemMeta{
		Payload: eventstore.EventBatch{
			BatchId: uuid.NewString(),
			Source:  cmd.Source,
			Lines:   lines,
		},
	})
	if err != nil {
		return err
	}

	// Print
	fmt.Println(item)
	return nil
}

func (cmd *ListItemsCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// List items
	items, err := manager.ListItems(ctx.ctx, schema.ItemListRequest{
		OffsetLimit: pgOffsetLimit(cmd.Offset, cmd.Limit),
		Queue:       cmd.Queue,
		Status:      cmd.Status,
	})
	if err != nil {
		return err
	}

	// Print
	fmt.Println(items)
	return nil
}

func (cmd *GetItemCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Get one item
	item, err := manager.GetItem(ctx.ctx, cmd.Id)
	if err != nil {
		return err
	}

	// Print
	fmt.Println(item)
	return nil
}

func (cmd *ExpireCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Reclaim stale leases
	count, err := manager.ExpireStale(ctx.ctx, cmd.Queue, cmd.Timeout)
	if err != nil {
		return err
	}

	// Print
	fmt.Println("reclaimed", count)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func pgOffsetLimit(offset, limit uint64) pg.OffsetLimit {
	o := pg.OffsetLimit{Offset: offset}
	if limit > 0 {
		o.Limit = &limit
	}
	return o
}
