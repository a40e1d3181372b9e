package main

import (
	"context"
	"fmt"

	// Packages
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type QueueCommands struct {
	ListQueues ListQueuesCommand `cmd:"" name:"queues" help:"List queues." group:"QUEUE"`
	Status     StatusCommand     `cmd:"" name:"status" help:"Queue depth per status." group:"QUEUE"`
}

type ListQueuesCommand struct {
	URL string `arg:"" name:"url" help:"Database URL"`
}

type StatusCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ListQueuesCommand) Run(ctx *Globals) error {
	manager, conn, err := dbManager(ctx, cmd.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// List queues
	queues, err := manager.ListQueues(ctx.ctx, schema.QueueListRequest{})
	if err != nil {
		return err
	}

	// Print
	fmt.Println(queues)
	return nil
}

// StatusCommand goes through the front door so it reports exactly what
// workers see, secret included.
func (cmd *StatusCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := ctx.StartSpan("StatusCommand")
	defer func() { endSpan(err) }()

	// Get status
	status, err := client.Status(parent)
	if err != nil {
		return err
	}

	// Print
	for _, queue := range status.Queues {
		fmt.Printf("%s/%s: %d\n", queue.Queue, queue.Status, queue.Count)
	}
	for _, source := range status.Sources {
		fmt.Printf("%s: received %d, dropped %d\n", source.Source, source.Received, source.Dropped)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// dbManager connects directly to the database for admin commands which
// bypass the front door.
func dbManager(ctx *Globals, url string) (*leasequeue.Manager, pg.PoolConn, error) {
	opts := []pg.Opt{
		pg.WithURL(url),
	}
	if ctx.Debug {
		opts = append(opts, pg.WithTrace(func(ctx context.Context, query string, args any, err error) {
			fmt.Println("PG TRACE:", query, args, err)
		}))
	}

	conn, err := pg.NewPool(ctx.ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	manager, err := leasequeue.New(ctx.ctx, conn, leasequeue.WithTracer(ctx.tracer))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return manager, conn, nil
}
