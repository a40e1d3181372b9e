package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	httphandler "github.com/mediastore/dispatch/pkg/httphandler"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	version "github.com/mediastore/dispatch/pkg/version"
	pg "github.com/mutablelogic/go-pg"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	RunServer RunServer `cmd:"" name:"run" help:"Run the front door server." group:"SERVER"`
}

type RunServer struct {
	URL string `arg:"" name:"url" help:"Database URL" default:""`

	// Postgres options
	PG struct {
		User     string `name:"user" env:"PG_USER" help:"Database user"`
		Password string `name:"password" env:"PG_PASSWORD" help:"Database password"`
	} `embed:"" prefix:"pg."`

	// Queue settings applied to both queue kinds
	Queue struct {
		StaleTimeout *time.Duration `name:"stale-timeout" help:"Reclaim leases with heartbeats older than this"`
		Retention    *time.Duration `name:"retention" help:"Delete terminal items older than this"`
		Retries      *uint64        `name:"retries" help:"Re-pend failed items this many times"`
	} `embed:"" prefix:"queue."`

	// Maintenance sweep period
	MaintenancePeriod time.Duration `name:"maintenance-period" help:"Period between reaper sweeps" default:"1m"`

	// TLS server options
	TLS struct {
		ServerName string `name:"name" help:"TLS server name"`
		CertFile   string `name:"cert" help:"TLS certificate file"`
		KeyFile    string `name:"key" help:"TLS key file"`
	} `embed:"" prefix:"tls."`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServer) Run(ctx *Globals) error {
	opts := []pg.Opt{
		pg.WithURL(cmd.URL),
	}
	if cmd.PG.User != "" || cmd.PG.Password != "" {
		opts = append(opts, pg.WithCredentials(cmd.PG.User, cmd.PG.Password))
	}
	if ctx.Debug {
		opts = append(opts, pg.WithTrace(func(ctx context.Context, query string, args any, err error) {
			fmt.Println("PG TRACE:", query, args, err)
		}))
	}

	// Create a pool connection
	conn, err := pg.NewPool(ctx.ctx, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Ping the database
	if err := conn.Ping(ctx.ctx); err != nil {
		return err
	}

	// Create the manager and the result sinks
	manager, err := leasequeue.New(ctx.ctx, conn, leasequeue.WithTracer(ctx.tracer))
	if err != nil {
		return err
	}
	assets, err := catalog.NewStore(ctx.ctx, conn)
	if err != nil {
		return err
	}
	events, err := eventstore.NewStore(ctx.ctx, conn)
	if err != nil {
		return err
	}

	// Register the two queue kinds
	for _, queue := range []string{schema.QueueProxy, schema.QueueIngest} {
		if _, err := manager.RegisterQueue(ctx.ctx, schema.QueueMeta{
			Queue:        queue,
			StaleTimeout: cmd.Queue.StaleTimeout,
			Retention:    cmd.Queue.Retention,
			Retries:      cmd.Queue.Retries,
		}); err != nil {
			return err
		}
	}

	// Register HTTP handlers
	router := http.NewServeMux()
	httphandler.RegisterWorkerHandlers(router, ctx.HTTP.Prefix, manager, assets, events, ctx.Secret)

	// Create a TLS config
	var tlsconfig *tls.Config
	if cmd.TLS.CertFile != "" || cmd.TLS.KeyFile != "" {
		tlsconfig, err = httpserver.TLSConfig(cmd.TLS.ServerName, true, cmd.TLS.CertFile, cmd.TLS.KeyFile)
		if err != nil {
			return err
		}
	}

	// Create a HTTP server
	server, err := httpserver.New(ctx.HTTP.Addr, router, tlsconfig)
	if err != nil {
		return err
	}

	// Run the reaper and the server concurrently. Each goroutine writes
	// its own error slot, joined after the wait.
	var wg sync.WaitGroup
	var maintErr, serverErr error
	fmt.Println(version.ExecName(), version.Version())
	if ctx.Secret == "" {
		fmt.Println("...no worker secret set, worker surface disabled")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := manager.RunMaintenance(ctx.ctx, cmd.MaintenancePeriod); err != nil {
			if !errors.Is(err, context.Canceled) {
				maintErr = fmt.Errorf("maintenance error: %w", err)
			}
			ctx.cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		fmt.Println("...listening on", ctx.HTTP.Addr+ctx.HTTP.Prefix)
		if err := server.Run(ctx.ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				serverErr = fmt.Errorf("server error: %w", err)
			}
			ctx.cancel()
		}
	}()

	// Wait for both to finish
	wg.Wait()
	result := errors.Join(maintErr, serverErr)

	// Terminated message
	if result == nil {
		fmt.Println(version.ExecName(), "terminated")
	}

	// Return any error
	return result
}
