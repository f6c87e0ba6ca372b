package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"openfilter/internal/config"
	"openfilter/internal/fctx"
	"openfilter/internal/logging"
	"openfilter/internal/runner"
	"openfilter/internal/webvis"
	"openfilter/internal/worker"
)

const workerIDEnv = "OPENFILTER_WORKER_ID"
const configPathEnv = "OPENFILTER_CONFIG"
const filterNameEnv = "OPENFILTER_FILTER_NAME"
const webvisAddrEnv = "OPENFILTER_WEBVIS_ADDR"

func main() {
	if os.Getenv(workerIDEnv) != "" {
		os.Exit(runWorker())
	}
	os.Exit(runPipeline())
}

// runWorker runs this process as a single filter worker, reading its
// declaration from configPathEnv/filterNameEnv (set by runPipeline's
// WorkerSpec.Env, or by an external launcher using the same contract).
func runWorker() int {
	log := logging.ForFilter(os.Getenv(workerIDEnv))

	fctx.Load(".")
	cfg, err := config.Load(os.Getenv(configPathEnv))
	if err != nil {
		log.WithError(err).Error("failed to load config")
		return 1
	}
	logging.SetOutputFormat(string(cfg.MQLog))

	filter, err := lookupFilter(os.Getenv(filterNameEnv))
	if err != nil {
		log.WithError(err).Error("failed to resolve filter")
		return 1
	}

	var vis *webvis.Service
	if addr := os.Getenv(webvisAddrEnv); addr != "" {
		vis = webvis.NewService()
		mux := http.NewServeMux()
		vis.RegisterRoutes(mux)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("webvis server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ww, err := buildWorker(ctx, cfg, filter, vis)
	if err != nil {
		log.WithError(err).Error("failed to wire transport")
		return 1
	}
	defer ww.Close()

	go func() {
		<-ctx.Done()
		ww.worker.RequestExit(worker.StopExternalSignal)
	}()

	return ww.worker.Run(ctx)
}

// runPipeline demonstrates wiring internal/runner over an in-process
// pipeline description: a producer filter feeding a consumer filter over a
// loopback TCP endpoint, each run as a re-exec of this same binary.
func runPipeline() int {
	log := logging.Root()

	producerAddr := "tcp://127.0.0.1:18271"
	producerCfg, err := writeTempConfig("producer", map[string]any{
		"id":      "producer",
		"outputs": []string{producerAddr},
	})
	if err != nil {
		log.WithError(err).Error("failed to write producer config")
		return 1
	}
	consumerCfg, err := writeTempConfig("consumer", map[string]any{
		"id":      "consumer",
		"sources": []string{producerAddr},
	})
	if err != nil {
		log.WithError(err).Error("failed to write consumer config")
		return 1
	}

	self := os.Args[0]
	specs := []runner.WorkerSpec{
		{
			ID:      "producer",
			Command: self,
			Env:     []string{workerIDEnv + "=producer", configPathEnv + "=" + producerCfg, filterNameEnv + "=counter"},
		},
		{
			ID:      "consumer",
			Command: self,
			Env:     []string{workerIDEnv + "=consumer", configPathEnv + "=" + consumerCfg, filterNameEnv + "=passthrough"},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := runner.New(specs, runner.Options{})
	codes, err := r.Run(ctx)
	if err != nil {
		log.WithError(err).Error("runner failed")
		return 1
	}

	worst := 0
	for i, spec := range specs {
		code := codes[i]
		fmt.Printf("worker %s exited with code %d\n", spec.ID, code)
		if code > worst {
			worst = code
		}
	}
	return worst
}

// writeTempConfig marshals doc as YAML and writes it to a fresh temp file
// named after id, standing in for the config files a real deployment would
// hand each worker subprocess.
func writeTempConfig(id string, doc map[string]any) (string, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("openfilter-run: marshal %s config: %w", id, err)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("openfilter-%s-%d.yaml", id, os.Getpid()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("openfilter-run: write %s config: %w", id, err)
	}
	return path, nil
}
