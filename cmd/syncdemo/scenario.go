package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanishqk/syncd/internal/client"
	"github.com/tanishqk/syncd/internal/mutations"
	"github.com/tanishqk/syncd/internal/server"
	"github.com/tanishqk/syncd/internal/synclog"
	"github.com/tanishqk/syncd/internal/syncproto"
	"github.com/tanishqk/syncd/internal/syncutil"
)

func newScenarioCmd(v *viper.Viper) *cobra.Command {
	var which int

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run one of the numbered replication scenarios and print its outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(v.GetString("log-level"))
			fn, ok := scenarios[which]
			if !ok {
				return fmt.Errorf("no such scenario: %d (valid: 1-7)", which)
			}
			return fn(logger.Subspace("scenario"))
		},
	}
	cmd.Flags().IntVar(&which, "which", 1, "scenario number to run, 1 through 7")
	return cmd
}

var scenarios = map[int]func(logger synclog.Logger) error{
	1: scenario1,
	2: scenario2,
	3: scenario3,
	4: scenario4,
	5: scenario5,
	6: scenario6,
	7: scenario7,
}

func newScenarioServer(logger synclog.Logger) *server.Server {
	s, err := server.New(server.Config{
		Registry: demoRegistry(),
		Logger:   logger,
		Dispatch: syncutil.SyncDispatcher,
	})
	if err != nil {
		panic(err)
	}
	return s
}

func newScenarioClient(s *server.Server, logger synclog.Logger, id string) *client.Client {
	c, err := client.New(client.Config{
		ServerConn: s,
		ClientID:   id,
		Registry:   demoRegistry(),
		Logger:     logger,
		Dispatch:   syncutil.SyncDispatcher,
	})
	if err != nil {
		panic(err)
	}
	return c
}

func scenario1(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c := newScenarioClient(s, logger, "c1")
	if err := c.Mutate("add", 2); err != nil {
		return err
	}
	v, _ := s.Get("value")
	fmt.Printf("scenario 1: server value = %v (want 2)\n", v)
	return nil
}

func scenario2(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c := newScenarioClient(s, logger, "c1")
	if err := c.Mutate("add", 2); err != nil {
		return err
	}
	if err := c.Mutate("add", 3); err != nil {
		return err
	}
	v, _ := s.Get("value")
	fmt.Printf("scenario 2: server value = %v (want 5)\n", v)
	return nil
}

func scenario3(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c1 := newScenarioClient(s, logger, "c1")
	c2 := newScenarioClient(s, logger, "c2")
	if err := c1.Mutate("add", 2); err != nil {
		return err
	}
	if err := c2.Mutate("add", 3); err != nil {
		return err
	}
	v, _ := s.Get("value")
	fmt.Printf("scenario 3: server value = %v (want 5)\n", v)
	return nil
}

func scenario4(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c1 := newScenarioClient(s, logger, "c1")
	c2 := newScenarioClient(s, logger, "c2")
	steps := []struct {
		c     *client.Client
		delta int
	}{
		{c1, 2}, {c2, 3}, {c1, 4}, {c2, 5},
	}
	for _, step := range steps {
		if err := step.c.Mutate("add", step.delta); err != nil {
			return err
		}
	}
	v, _ := s.Get("value")
	fmt.Printf("scenario 4: server value = %v (want 14)\n", v)
	return nil
}

func scenario5(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c1 := newScenarioClient(s, logger, "c1")
	c2 := newScenarioClient(s, logger, "c2")
	if err := c2.Mutate("add", 3); err != nil {
		return err
	}
	v, _ := c1.Get("value")
	fmt.Printf("scenario 5: c1 observed value = %v (want 3)\n", v)
	return nil
}

func scenario6(logger synclog.Logger) error {
	s := newScenarioServer(logger)
	c1 := newScenarioClient(s, logger, "c1")
	c2 := newScenarioClient(s, logger, "c2")

	var observed any
	unsubscribe := c1.Watch("value", func(v any) { observed = v })
	defer unsubscribe()

	if err := c2.Mutate("add", 3); err != nil {
		return err
	}
	fmt.Printf("scenario 6: watcher observed = %v (want 3)\n", observed)
	return nil
}

// scenario7 seeds the todo list with a direct mutator call before any client
// connects, since the server has no separate bootstrap path: the first
// client to connect pulls whatever is already in the log.
func scenario7(logger synclog.Logger) error {
	reg := demoRegistry()
	reg.Register("seedTodos", func(tx mutations.Transaction, args ...any) error {
		tx.Set("todos", []mutations.Todo{{Text: "Buy milk", Done: false}})
		return nil
	})

	s, err := server.New(server.Config{
		Registry: reg,
		Logger:   logger,
		Dispatch: syncutil.SyncDispatcher,
	})
	if err != nil {
		return err
	}

	if err := s.Push(context.Background(), "seeder", []syncproto.Mutation{{ID: "seed1", Name: "seedTodos"}}); err != nil {
		return err
	}

	c1 := newScenarioClient(s, logger, "c1")
	c2 := newScenarioClient(s, logger, "c2")

	if err := c1.Mutate("toggleTodo", 0); err != nil {
		return err
	}
	if err := c2.Mutate("addTodo", "Buy eggs"); err != nil {
		return err
	}

	serverTodos, _ := s.Get("todos")
	c1Todos, _ := c1.Get("todos")
	c2Todos, _ := c2.Get("todos")
	fmt.Printf("scenario 7: server todos = %v\n", serverTodos)
	fmt.Printf("scenario 7: c1 todos     = %v\n", c1Todos)
	fmt.Printf("scenario 7: c2 todos     = %v\n", c2Todos)
	return nil
}
