package pipelines

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"streamctl/internal/core/domain"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// GenericNamespace holds the pipelines every hardware class can run.
const GenericNamespace = "generic"

// Scanner lists the pipeline files under <root>/<hardware> and
// <root>/generic. Nothing is cached; every call reads the directories.
type Scanner struct {
	root       string
	namespaces []string
	logger     *zap.SugaredLogger
}

func NewScanner(root, hardware string, logger *zap.SugaredLogger) *Scanner {
	namespaces := []string{GenericNamespace}
	if hardware != "" && hardware != GenericNamespace {
		namespaces = []string{hardware, GenericNamespace}
	}
	return &Scanner{root: root, namespaces: namespaces, logger: logger}
}

// ID derives the pipeline identifier from its namespaced name.
func ID(name string) domain.PipelineID {
	sum := blake3.Sum256([]byte(name))
	return domain.PipelineID(hex.EncodeToString(sum[:]))
}

// List returns the pipelines sorted by name.
func (s *Scanner) List(ctx context.Context) ([]domain.Pipeline, error) {
	var out []domain.Pipeline
	for _, ns := range s.namespaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(s.root, ns)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debugw("pipeline directory missing", "dir", dir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read pipelines %s: %w", dir, err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
				continue
			}
			name := ns + "/" + e.Name()
			out = append(out, domain.Pipeline{
				ID:   ID(name),
				Name: name,
				Path: filepath.Join(dir, e.Name()),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lookup rescans and returns the pipeline with the given id.
func (s *Scanner) Lookup(ctx context.Context, id domain.PipelineID) (domain.Pipeline, error) {
	list, err := s.List(ctx)
	if err != nil {
		return domain.Pipeline{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Pipeline{}, domain.ErrPipelineNotFound
}

// Entries builds the wire listing keyed by pipeline id.
func Entries(list []domain.Pipeline) map[domain.PipelineID]domain.PipelineEntry {
	out := make(map[domain.PipelineID]domain.PipelineEntry, len(list))
	for _, p := range list {
		out[p.ID] = domain.PipelineEntry{Name: p.Name}
	}
	return out
}
