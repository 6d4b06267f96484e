package scheduler

import (
	"context"
	"log"
	"time"

	"pushdash-backend/config"
	"pushdash-backend/internal/model"
	"pushdash-backend/internal/notification"
	"pushdash-backend/internal/store"
)

// Service polls for due scheduled campaigns and hands them to the delivery
// worker pool.
type Service struct {
	cfg        *config.Config
	store      store.Store
	workerPool *notification.WorkerPool
}

// NewService creates a new campaign scheduler.
func NewService(cfg *config.Config, s store.Store, pool *notification.WorkerPool) *Service {
	return &Service{cfg: cfg, store: s, workerPool: pool}
}

// Run starts the scheduling loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Scheduler.Enabled {
		log.Println("Campaign scheduler is disabled. Not starting.")
		return
	}
	log.Println("Starting campaign scheduler...")

	s.DispatchDue(ctx)

	timer := time.NewTimer(s.cfg.Scheduler.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Campaign scheduler shutting down.")
			return
		case <-timer.C:
			s.DispatchDue(ctx)
			timer.Reset(s.cfg.Scheduler.Interval)
		}
	}
}

// DispatchDue performs one scheduling pass. A campaign is flipped to sending
// before dispatch so a slow delivery cannot be picked up twice by later
// passes.
func (s *Service) DispatchDue(ctx context.Context) {
	now := time.Now().UTC()
	campaigns, err := s.store.DueCampaigns(ctx, now)
	if err != nil {
		log.Printf("Error fetching due campaigns: %v", err)
		return
	}

	for _, campaign := range campaigns {
		if err := s.store.SetCampaignStatus(ctx, campaign.ID, model.CampaignSending, nil); err != nil {
			log.Printf("Error claiming campaign %s: %v", campaign.ID, err)
			continue
		}
		log.Printf("Dispatching scheduled campaign %s", campaign.ID)
		s.workerPool.Dispatch(campaign.ID)
	}
}
