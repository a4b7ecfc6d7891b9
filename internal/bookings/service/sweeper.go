package service

import (
	"context"
	"time"

	"eventbook/internal/bookings/repository"
	"eventbook/pkg/config"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
)

// Sweeper removes expired bookings on a cron schedule and returns their
// seats. Each booking is swept in its own transaction, so one bad row
// cannot block the rest of the batch.
type Sweeper struct {
	repo  repository.BookingRepository
	slots SlotStore
	cfg   *config.Config
	cron  *cron.Cron
}

func NewSweeper(repo repository.BookingRepository, slots SlotStore, cfg *config.Config) *Sweeper {
	return &Sweeper{
		repo:  repo,
		slots: slots,
		cfg:   cfg,
		cron:  cron.New(),
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		swept, err := s.Run(context.Background())
		if err != nil {
			s.cfg.Log.Error("Expired booking sweep failed", "error", err)
			return
		}
		if swept > 0 {
			s.cfg.Log.Info("Expired booking sweep completed", "swept", swept)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.cfg.Log.Info("Booking sweeper started", "schedule", s.cfg.SweepSchedule)
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cfg.Log.Info("Booking sweeper stopped")
}

// Run sweeps all bookings whose expires_at has passed and reports how many
// were removed. Sweeping an already-swept booking is a no-op, so overlapping
// runs are safe.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.repo.FindExpired(ctx, now, s.cfg.SweepBatchLimit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, booking := range expired {
		bookingID := booking.ID
		slotID := booking.SlotID

		err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := s.repo.Delete(sessCtx, bookingID); err != nil {
				return err
			}
			return s.slots.ReleaseSeat(sessCtx, slotID)
		})
		if err != nil {
			s.cfg.Log.Error("Failed to sweep expired booking",
				"booking_id", bookingID,
				"slot_id", slotID,
				"error", err,
			)
			continue
		}

		swept++
		s.cfg.Log.Debug("Expired booking swept",
			"booking_id", bookingID,
			"slot_id", slotID,
			"user_id", booking.UserID,
		)
	}

	return swept, nil
}
