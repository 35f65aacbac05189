package notifier

import (
	"context"
	"errors"
	"time"

	"TechPulse/backend/go/internal/connection"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"
)

// Outcome is the per-connection result of a broadcast.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Dead      Outcome = "dead"
	// Skipped connections stay registered: their socket belongs to another
	// node, or their registration could not be read.
	Skipped Outcome = "skipped"
)

// Pusher delivers one payload to one connection.
type Pusher interface {
	Push(ctx context.Context, id string, payload []byte) error
}

// Closer closes local sockets of pruned connections.
type Closer interface {
	Detach(ids ...string)
}

// BroadcastReport lists the outcome for every connection that was considered.
type BroadcastReport struct {
	Outcomes  map[string]Outcome
	Delivered []string
	Dead      []string
	Skipped   []string
	PruneErr  error
}

func (r *BroadcastReport) record(id string, o Outcome) {
	r.Outcomes[id] = o
	switch o {
	case Delivered:
		r.Delivered = append(r.Delivered, id)
	case Dead:
		r.Dead = append(r.Dead, id)
	default:
		r.Skipped = append(r.Skipped, id)
	}
}

// Notifier pushes change notifications to live connections. Delivery is
// best effort: no retries and no ordering across connections.
type Notifier struct {
	registry connection.Registry
	pusher   Pusher
	closer   Closer
	now      func() time.Time
	log      *logger.Logger
}

// New creates a Notifier. closer may be nil when sockets are not local.
func New(registry connection.Registry, pusher Pusher, closer Closer, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		registry: registry,
		pusher:   pusher,
		closer:   closer,
		now:      time.Now,
		log:      log,
	}
}

// FromService wires a Notifier to a connection service's registry and hub.
func FromService(svc *connection.Service, log *logger.Logger) *Notifier {
	return New(svc.Registry(), svc.Hub(), svc.Hub(), log)
}

// Broadcast sends payload to the given connections, or to every registered
// connection when ids is empty. Expired registrations and failed pushes are
// marked Dead and pruned together once the pass is over. Registrations whose
// socket is attached to another node are skipped and left to their TTL.
func (n *Notifier) Broadcast(ctx context.Context, payload []byte, ids []string) *BroadcastReport {
	report := &BroadcastReport{Outcomes: make(map[string]Outcome)}
	now := n.now()

	targets, err := n.targets(ctx, ids)
	if err != nil {
		n.log.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).
			Error("Failed to enumerate live connections")
		return report
	}

	for _, t := range targets {
		if _, seen := report.Outcomes[t.id]; seen {
			continue
		}
		if t.err != nil {
			n.log.WithPayload(map[string]interface{}{"connectionId": t.id}).
				WithError(models.ErrorInfo{Message: t.err.Error(), Type: models.ErrTypeNotification}).
				Warn("Connection lookup failed, skipping")
			report.record(t.id, Skipped)
			continue
		}
		if !t.found || t.conn.Expired(now) {
			report.record(t.id, Dead)
			continue
		}
		err := n.pusher.Push(ctx, t.id, payload)
		if errors.Is(err, connection.ErrNotAttached) {
			report.record(t.id, Skipped)
			continue
		}
		if err != nil {
			n.log.WithPayload(map[string]interface{}{"connectionId": t.id}).
				WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).
				Warn("Push failed, connection will be pruned")
			report.record(t.id, Dead)
			continue
		}
		report.record(t.id, Delivered)
	}

	if len(report.Dead) > 0 {
		report.PruneErr = n.prune(ctx, report.Dead)
	}
	n.log.WithPayload(map[string]interface{}{
		"delivered": len(report.Delivered),
		"dead":      len(report.Dead),
		"skipped":   len(report.Skipped),
	}).Info("Broadcast finished")
	return report
}

type target struct {
	id    string
	conn  models.LiveConnection
	found bool
	err   error
}

func (n *Notifier) targets(ctx context.Context, ids []string) ([]target, error) {
	if len(ids) == 0 {
		conns, err := n.registry.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]target, 0, len(conns))
		for _, c := range conns {
			out = append(out, target{id: c.ConnectionID, conn: c, found: true})
		}
		return out, nil
	}

	out := make([]target, 0, len(ids))
	for _, id := range ids {
		c, err := n.registry.Get(ctx, id)
		if err != nil {
			out = append(out, target{id: id, err: err})
			continue
		}
		if c == nil {
			out = append(out, target{id: id})
			continue
		}
		out = append(out, target{id: id, conn: *c, found: true})
	}
	return out, nil
}

// prune runs after the pass; a cancelled broadcast context must not leave
// dead registrations behind.
func (n *Notifier) prune(ctx context.Context, dead []string) error {
	if n.closer != nil {
		n.closer.Detach(dead...)
	}
	if err := n.registry.Remove(context.WithoutCancel(ctx), dead...); err != nil {
		n.log.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).
			Error("Failed to prune dead connections")
		return err
	}
	return nil
}
