package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/markit/markit-server/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type dlqPurger interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxPurger
	Retention        time.Duration
	TerminalAttempts int
}

// NewOutboxRetentionJob drops outbox rows that no publisher will touch again:
// published rows and rows pinned at the attempt ceiling.
func NewOutboxRetentionJob(params OutboxRetentionParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	if params.TerminalAttempts <= 0 {
		return nil, errors.New("terminal attempt count required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		terminal:  params.TerminalAttempts,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPurger
	retention time.Duration
	terminal  int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeleteSettledBefore(tx, cutoff, j.terminal)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention sweep complete")
	return nil
}

type DLQRetentionParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository dlqPurger
	Retention  time.Duration
}

// NewDLQRetentionJob expires parked events once nobody is going to replay them.
func NewDLQRetentionJob(params DLQRetentionParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("dlq repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultDLQRetention
	}
	return &dlqRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type dlqRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      dlqPurger
	retention time.Duration
	now       func() time.Time
}

func (j *dlqRetentionJob) Name() string { return "dlq-retention" }

func (j *dlqRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeleteFailedBefore(tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("dlq retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "dlq retention sweep complete")
	return nil
}
