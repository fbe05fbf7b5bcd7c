// Package notify delivers welcome notices off the request path.
//
// Notices go into a bounded in-memory queue drained by a single worker.
// Delivery is best effort: a full queue drops the notice, and a failed
// send is logged and not retried. Nothing here can fail account creation.
package notify

import (
	"errors"
	"strings"
	"sync"

	"github.com/dalemusser/dashhub/internal/app/system/mailer"
	"github.com/dalemusser/dashhub/internal/app/system/metrics"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultSize is the queue capacity when none is configured.
const DefaultSize = 100

var (
	// ErrQueueFull is returned when a notice is dropped for lack of room.
	ErrQueueFull = errors.New("notify: queue full")
	// ErrStopped is returned once the queue has been stopped.
	ErrStopped = errors.New("notify: queue stopped")
)

// Sender delivers one email. *mailer.Mailer satisfies it.
type Sender interface {
	Send(e mailer.Email) error
}

// Config controls welcome notice content.
type Config struct {
	SiteName string // shown in subject and body
	BaseURL  string // sign-in link is BaseURL + "/login"
	Size     int    // queue capacity
}

// Queue is the welcome notice queue and its worker.
type Queue struct {
	sender Sender
	cfg    Config
	log    *zap.Logger

	ch     chan models.User
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewQueue creates a Queue. Call Start to begin delivery.
func NewQueue(sender Sender, cfg Config, logger *zap.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "Dynamic Dashboard"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		sender: sender,
		cfg:    cfg,
		log:    logger,
		ch:     make(chan models.User, cfg.Size),
		stopCh: make(chan struct{}),
	}
}

// EnqueueWelcome queues a welcome notice for u without blocking.
func (q *Queue) EnqueueWelcome(u models.User) error {
	select {
	case <-q.stopCh:
		return ErrStopped
	default:
	}

	select {
	case q.ch <- u:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	default:
		metrics.ObserveNotice(metrics.NoticeDropped)
		q.log.Warn("welcome notice dropped, queue full",
			zap.String("user_id", u.ID.Hex()),
			zap.Int("capacity", cap(q.ch)))
		return ErrQueueFull
	}
}

// Start begins the delivery loop.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
	q.log.Info("notify queue started", zap.Int("capacity", cap(q.ch)))
}

// Stop rejects new notices, delivers what is already queued, and waits for
// the worker to finish.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stopCh) })
	q.wg.Wait()
	q.log.Info("notify queue stopped")
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case u := <-q.ch:
			q.deliver(u)
		case <-q.stopCh:
			for {
				select {
				case u := <-q.ch:
					q.deliver(u)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(u models.User) {
	metrics.SetQueueDepth(len(q.ch))

	e := mailer.BuildWelcomeEmail(mailer.WelcomeEmailData{
		SiteName:  q.cfg.SiteName,
		Name:      u.Name,
		Role:      string(u.Role),
		SignInURL: strings.TrimRight(q.cfg.BaseURL, "/") + "/login",
	})
	e.To = u.Email

	if err := q.sender.Send(e); err != nil {
		metrics.ObserveNotice(metrics.NoticeFailed)
		q.log.Error("welcome notice failed",
			zap.String("user_id", u.ID.Hex()),
			zap.Error(err))
		return
	}
	metrics.ObserveNotice(metrics.NoticeSent)
	q.log.Info("welcome notice sent", zap.String("user_id", u.ID.Hex()))
}
