package monitoring

import (
	"context"
	"fmt"
	"os"
	"time"

	"streamctl/internal/core/ports"
)

// AddDocumentStoreCheck verifies the state backend accepts requests.
func (h *HealthChecker) AddDocumentStoreCheck(store ports.DocumentStore, timeout time.Duration) {
	h.AddCheck("documents", store.Ping, timeout)
}

// AddPipelinesCheck verifies the pipeline directories can be listed.
func (h *HealthChecker) AddPipelinesCheck(pipelines ports.PipelineLister, timeout time.Duration) {
	h.AddCheck("pipelines", func(ctx context.Context) error {
		_, err := pipelines.List(ctx)
		return err
	}, timeout)
}

// AddPathCheck verifies that a directory the service reads exists.
func (h *HealthChecker) AddPathCheck(name, path string) {
	h.AddCheck(name, func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}, 0)
}
