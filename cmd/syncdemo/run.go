package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanishqk/syncd/internal/client"
	"github.com/tanishqk/syncd/internal/patchlog"
	"github.com/tanishqk/syncd/internal/server"
	"github.com/tanishqk/syncd/internal/synclog"
	"github.com/tanishqk/syncd/internal/syncutil"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var numClients int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a server and a handful of clients issuing add mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(v.GetString("log-level"))

			store, err := newStore(v.GetString("statefile"))
			if err != nil {
				return err
			}

			reg := demoRegistry()
			s, err := server.New(server.Config{
				Registry: reg,
				Store:    store,
				Logger:   logger,
				Dispatch: syncutil.AsyncDispatcher,
			})
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			clients := make([]*client.Client, numClients)
			for i := range clients {
				id := fmt.Sprintf("client-%d", i+1)
				c, err := client.New(client.Config{
					ServerConn: s,
					ClientID:   id,
					Registry:   reg,
					Logger:     logger,
					Dispatch:   syncutil.SyncDispatcher,
				})
				if err != nil {
					return fmt.Errorf("create %s: %w", id, err)
				}
				clients[i] = c
			}

			for i, c := range clients {
				if err := c.Mutate("add", i+1); err != nil {
					return fmt.Errorf("mutate on client %d: %w", i+1, err)
				}
			}

			value, _ := s.Get("value")
			fmt.Printf("server value: %v\n", value)
			for i, c := range clients {
				v, _ := c.Get("value")
				fmt.Printf("client-%d value: %v\n", i+1, v)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&numClients, "clients", 2, "number of demo clients to create")
	return cmd
}

func newLogger(level string) synclog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	return synclog.New(slog.New(handler))
}

func newStore(path string) (patchlog.Store, error) {
	if path == "" {
		return patchlog.NewMemoryStore(), nil
	}
	return patchlog.NewFileStore(path)
}
