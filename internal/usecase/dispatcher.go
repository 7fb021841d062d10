package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/ports"
)

// RunRequestedMessage is shown in the status widget after a submitted run.
const RunRequestedMessage = "Run command requested..."

// Annotator receives a transient status message.
type Annotator interface {
	Annotate(message string)
}

// DispatcherDeps wires the command dispatcher.
type DispatcherDeps struct {
	Commands ports.CommandWriter
	// Cooldown is how long after a successful request further requests are ignored.
	Cooldown time.Duration
	// Timeout bounds a single submission; zero leaves it to the store.
	Timeout time.Duration
	Status  Annotator
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

// CommandDispatcher submits run-now commands without blocking the caller.
// Requests made while one is in flight or cooling down are dropped.
type CommandDispatcher struct {
	commands ports.CommandWriter
	cooldown time.Duration
	timeout  time.Duration
	status   Annotator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string

	mu            sync.Mutex
	inFlight      bool
	cooldownUntil time.Time
	wg            sync.WaitGroup
}

// NewCommandDispatcher constructs a dispatcher.
func NewCommandDispatcher(deps DispatcherDeps) *CommandDispatcher {
	d := &CommandDispatcher{
		commands: deps.Commands,
		cooldown: deps.Cooldown,
		timeout:  deps.Timeout,
		status:   deps.Status,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      deps.Now,
		newID:    deps.NewID,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.NewString() }
	}
	return d
}

// RequestRunNow queues one RUN_NOW command and returns immediately. It
// reports false when the request was coalesced into an earlier one.
func (d *CommandDispatcher) RequestRunNow(ctx context.Context) bool {
	issuedAt := d.now()

	d.mu.Lock()
	if d.inFlight || issuedAt.Before(d.cooldownUntil) {
		d.mu.Unlock()
		d.metrics.Command(metrics.ResultCoalesced)
		d.debug("run-now coalesced")
		return false
	}
	d.inFlight = true
	d.wg.Add(1)
	d.mu.Unlock()

	cmd := domain.CommandRecord{
		ID:       d.newID(),
		Command:  domain.CommandRunNow,
		Status:   domain.CommandPending,
		IssuedAt: issuedAt,
	}

	go d.submit(context.WithoutCancel(ctx), cmd)
	return true
}

func (d *CommandDispatcher) submit(ctx context.Context, cmd domain.CommandRecord) {
	defer d.wg.Done()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := d.commands.InsertCommand(ctx, cmd)

	d.mu.Lock()
	d.inFlight = false
	if err != nil {
		d.cooldownUntil = time.Time{}
	} else {
		d.cooldownUntil = cmd.IssuedAt.Add(d.cooldown)
	}
	d.mu.Unlock()

	if err != nil {
		d.metrics.Command(metrics.ResultError)
		if d.logger != nil {
			d.logger.Error("run-now submission failed", "command_id", cmd.ID, "error", err)
		}
		return
	}

	d.metrics.Command(metrics.ResultSuccess)
	if d.logger != nil {
		d.logger.Info("run-now submitted", "command_id", cmd.ID)
	}
	if d.status != nil {
		d.status.Annotate(RunRequestedMessage)
	}
}

// Pending reports whether new requests would currently be coalesced.
func (d *CommandDispatcher) Pending() bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight || now.Before(d.cooldownUntil)
}

// Wait blocks until every accepted submission has finished.
func (d *CommandDispatcher) Wait() {
	d.wg.Wait()
}

func (d *CommandDispatcher) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
