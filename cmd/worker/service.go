package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/markit/markit-server/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

// consumer is one subscription loop; Run blocks until ctx ends or it fails.
type consumer interface {
	Name() string
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	p    pinger
}

// Service checks its backends once, then runs every consumer side by side.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers []consumer
}

func NewService(logg *logger.Logger, deps []dependency, consumers ...consumer) (*Service, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if len(consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, d := range deps {
		if d.p == nil {
			return nil, fmt.Errorf("%s client is required", d.name)
		}
	}
	return &Service{logg: logg, deps: deps, consumers: consumers}, nil
}

// Run returns the first consumer failure after canceling the rest.
func (s *Service) Run(ctx context.Context) error {
	for _, d := range s.deps {
		if err := d.p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.consumers {
		g.Go(func() error {
			err := c.Run(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("%s consumer: %w", c.Name(), err)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
