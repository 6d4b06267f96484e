package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pushdash-backend/config"
	"pushdash-backend/internal/db"
	"pushdash-backend/internal/model"
	"pushdash-backend/internal/notification"
	"pushdash-backend/internal/store"
)

func newSchedulerTestStore(t *testing.T) store.Store {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file:schedtest"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func seedCampaign(t *testing.T, s store.Store, id string, status model.CampaignStatus, scheduledAt *time.Time) {
	t.Helper()
	now := time.Now().UTC()
	campaign := model.Campaign{
		ID: id, WebsiteID: "site-1",
		Title: "t", Body: "b",
		Status: status, ScheduledAt: scheduledAt,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateCampaign(context.Background(), &campaign))
}

func TestDispatchDue(t *testing.T) {
	s := newSchedulerTestStore(t)
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)
	seedCampaign(t, s, "camp-due", model.CampaignScheduled, &past)
	seedCampaign(t, s, "camp-future", model.CampaignScheduled, &future)
	seedCampaign(t, s, "camp-draft", model.CampaignDraft, &past)

	cfg := &config.Config{}
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Interval = time.Minute
	pool := notification.NewWorkerPool(2, s, cfg.Push)
	svc := NewService(cfg, s, pool)

	svc.DispatchDue(context.Background())

	select {
	case job := <-pool.Jobs():
		assert.Equal(t, "camp-due", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for due campaign to be dispatched")
	}
	// Future and draft campaigns stay put.
	select {
	case job := <-pool.Jobs():
		t.Fatalf("unexpected dispatch of campaign %s", job)
	default:
	}

	// The due campaign is claimed before dispatch so the next pass skips it.
	claimed, err := s.CampaignByID(context.Background(), "camp-due")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignSending, claimed.Status)

	svc.DispatchDue(context.Background())
	select {
	case job := <-pool.Jobs():
		t.Fatalf("campaign %s dispatched twice", job)
	default:
	}
}

func TestRunDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Enabled = false
	svc := NewService(cfg, newSchedulerTestStore(t), nil)

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("disabled scheduler did not return immediately")
	}
}
