package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/sitewatch/pkg/app"
)

// program adapts app.RunContext to the service manager's Start/Stop calls.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		err := app.RunContext(ctx, p.params)
		done <- err
		if err != nil && !service.Interactive() {
			// Let the service manager restart us.
			_ = s.Stop()
		}
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

func newService(params app.RunParams) (service.Service, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		params.ConfigPath = abs
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	cfg := &service.Config{
		Name:        "sitewatch",
		DisplayName: "sitewatch",
		Description: "Watches web pages and feeds for new links and notifies chat channels.",
		Arguments:   args,
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the system service",
	}

	action := func(use, short string, fn func(service.Service) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(runParams(cmd))
				if err != nil {
					return err
				}
				if err := fn(s); err != nil {
					return fmt.Errorf("service %s: %w", use, err)
				}
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", "Install sitewatch as a system service", service.Service.Install),
		action("uninstall", "Remove the system service", service.Service.Uninstall),
		action("run", "Run under the service manager", service.Service.Run),
	)
	return cmd
}
