package main

import (
	"context"
	"fmt"
	"time"

	"openfilter/internal/config"
	"openfilter/internal/frame"
	"openfilter/internal/router"
	"openfilter/internal/transport"
	"openfilter/internal/webvis"
	"openfilter/internal/worker"
)

// wiredWorker bundles a constructed Worker with the transport handles its
// Run/Close lifecycle needs.
type wiredWorker struct {
	worker     *worker.Worker
	subscriber *transport.Subscriber
	publisher  *transport.Publisher
	metricsPub *transport.Publisher
}

// buildWorker assembles the subscriber, router, publisher(s), and Worker for
// one normalized filter config, wiring webvis as an additional tee of every
// published tick when vis is non-nil.
func buildWorker(ctx context.Context, cfg *config.FilterConfig, filter worker.Filter, vis *webvis.Service) (*wiredWorker, error) {
	var feeds []transport.Feed
	var sub *transport.Subscriber
	if len(cfg.Sources) > 0 {
		specs := make([]transport.SourceSpec, len(cfg.Sources))
		for i, url := range cfg.Sources {
			group := ""
			if cfg.SourcesBalance {
				group = "default"
			}
			specs[i] = transport.SourceSpec{URL: url, Group: group}
		}
		var err error
		sub, err = transport.NewSubscriber(cfg.ID, specs, 64, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("openfilter-run: build subscriber for %q: %w", cfg.ID, err)
		}
		if err := sub.Connect(ctx); err != nil {
			return nil, fmt.Errorf("openfilter-run: connect subscriber for %q: %w", cfg.ID, err)
		}
		feeds = sub.Feeds()
	}

	var rtr worker.Puller
	if len(feeds) > 0 {
		rtr = router.New(feeds, cfg.BoolMsgIDSync())
	}

	pub, err := transport.NewPublisher(cfg.ID, cfg.Outputs, transport.PublisherOptions{
		Balanced:    cfg.OutputsBalance,
		Required:    cfg.OutputsRequired,
		SendTimeout: cfg.OutputsTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("openfilter-run: build publisher for %q: %w", cfg.ID, err)
	}
	if err := pub.Listen(); err != nil {
		return nil, fmt.Errorf("openfilter-run: listen for %q: %w", cfg.ID, err)
	}
	if err := pub.WaitRequired(ctx); err != nil {
		return nil, fmt.Errorf("openfilter-run: wait for required subscribers of %q: %w", cfg.ID, err)
	}

	w := worker.New(workerConfig(cfg), filter, rtr, publishPub{pub: pub, vis: vis, filterID: cfg.ID})

	ww := &wiredWorker{worker: w, subscriber: sub, publisher: pub}

	if cfg.OutputsMetrics != "" {
		metricsPub, err := transport.NewPublisher(cfg.ID+"-metrics", []string{cfg.OutputsMetrics}, transport.PublisherOptions{SendTimeout: cfg.OutputsTimeout()})
		if err != nil {
			return nil, fmt.Errorf("openfilter-run: build metrics sidecar for %q: %w", cfg.ID, err)
		}
		if err := metricsPub.Listen(); err != nil {
			return nil, fmt.Errorf("openfilter-run: listen metrics sidecar for %q: %w", cfg.ID, err)
		}
		ww.metricsPub = metricsPub
		w.SetMetricsPublisher(metricsPub)
	}

	return ww, nil
}

// workerConfig projects a normalized FilterConfig onto worker.Config.
func workerConfig(cfg *config.FilterConfig) worker.Config {
	exitAfter, _ := cfg.ExitAfterTime()
	return worker.Config{
		ID:              cfg.ID,
		SourcesTimeout:  cfg.SourcesTimeout(),
		ExitAfter:       exitAfter,
		MetricsInterval: cfg.MetricsInterval(),
		OutputsMetrics:  cfg.OutputsMetrics != "",
		OutputsFilter:   cfg.BoolOutputsFilter(),
		ExtraMetrics:    cfg.ExtraMetrics,
	}
}

// Close tears down every transport handle this worker opened.
func (w *wiredWorker) Close() {
	if w.subscriber != nil {
		w.subscriber.Close()
	}
	w.publisher.Close()
	if w.metricsPub != nil {
		w.metricsPub.Close()
	}
}

// publishPub adapts transport.Publisher to worker.Pub, additionally tee-ing
// every published tick into the webvis hub (if configured) so a browser
// dashboard sees the same _metrics/_filter data a real downstream subscriber
// would.
type publishPub struct {
	pub      *transport.Publisher
	vis      *webvis.Service
	filterID string
}

// Publish fans set out over the wire and, if webvis is enabled, into the hub.
func (p publishPub) Publish(set frame.Set) {
	p.pub.Publish(set)
	if p.vis != nil {
		p.vis.Sink(p.filterID).Publish(set)
	}
}
