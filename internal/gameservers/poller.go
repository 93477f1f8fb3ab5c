package gameservers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"guildstats/internal/database"
)

// Poller keeps the game_servers table in step with the hosting panel:
// it upserts the current inventory, appends a metric sample per instance,
// prunes instances that vanished and fills in missing cover art.
type Poller struct {
	store    database.Store
	client   *Client
	covers   *CoverFetcher
	log      *zap.Logger
	clock    quartz.Clock
	interval time.Duration
}

// NewPoller creates a poller that syncs every interval. covers may be nil
// when cover lookups are not configured.
func NewPoller(store database.Store, client *Client, covers *CoverFetcher, log *zap.Logger, clock quartz.Clock, interval time.Duration) *Poller {
	return &Poller{
		store:    store,
		client:   client,
		covers:   covers,
		log:      log,
		clock:    clock,
		interval: interval,
	}
}

// Run syncs on a fixed interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	waiter := p.clock.TickerFunc(ctx, p.interval, func() error {
		if err := p.Sync(ctx); err != nil {
			p.log.Error("game server sync failed", zap.Error(err))
		}
		return nil
	}, "gameservers")

	err := waiter.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Sync performs one inventory pass.
func (p *Poller) Sync(ctx context.Context) error {
	token, err := p.client.Login(ctx)
	if err != nil {
		return err
	}
	instances, err := p.client.Instances(ctx, token)
	if err != nil {
		return err
	}

	now := p.clock.Now().UTC()
	instanceIDs := make([]string, 0, len(instances))
	for _, instance := range instances {
		instanceIDs = append(instanceIDs, instance.InstanceID)

		server, err := p.store.UpsertGameServer(ctx, database.UpsertGameServerParams{
			InstanceID:        instance.InstanceID,
			InstanceName:      instance.InstanceName,
			FriendlyName:      instance.FriendlyName,
			Module:            instance.Module,
			ModuleDisplayName: instance.ModuleDisplayName,
			IP:                instance.IP,
			Port:              instance.Port,
			Running:           instance.Running,
			AppState:          instance.AppState,
			CPUUsagePercent:   instance.CPUUsage(),
			MemoryUsageMB:     instance.MemoryUsageMB(),
			ActiveUsers:       instance.ActiveUsers(),
			Now:               now,
		})
		if err != nil {
			return fmt.Errorf("failed to sync instance %s: %w", instance.InstanceID, err)
		}

		err = p.store.InsertGameServerMetric(ctx, server.ID,
			instance.CPUUsage(), instance.MemoryUsageMB(), instance.ActiveUsers(), now)
		if err != nil {
			return fmt.Errorf("failed to record metrics for %s: %w", instance.InstanceID, err)
		}
	}

	deleted, err := p.store.DeleteGameServersNotIn(ctx, instanceIDs)
	if err != nil {
		return err
	}
	for _, server := range deleted {
		p.log.Info("game server removed from inventory", zap.String("instance", server.InstanceID))
		if p.covers.Enabled() {
			p.covers.Remove(server.CoverImage)
		}
	}

	if err := p.fetchCovers(ctx); err != nil {
		// Cover art is cosmetic; a failed lookup never fails the sync.
		p.log.Warn("cover art fetch failed", zap.Error(err))
	}
	return nil
}

func (p *Poller) fetchCovers(ctx context.Context) error {
	if !p.covers.Enabled() {
		return nil
	}
	pending, err := p.store.GetGameServersWithoutCovers(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	token, err := p.covers.Token(ctx)
	if err != nil {
		return err
	}

	for _, server := range pending {
		path, err := p.covers.Fetch(ctx, token, server.DisplayName())
		if err != nil {
			p.log.Warn("cover lookup failed",
				zap.String("game", server.DisplayName()), zap.Error(err))
			path = ""
		}
		// Mark fetched even with no cover so the lookup is not retried
		// every cycle.
		if err := p.store.SetGameServerCover(ctx, server.ID, path); err != nil {
			return err
		}
	}
	return nil
}
