package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ripcordhq/ripcord/pkg/metrics"
	"github.com/ripcordhq/ripcord/pkg/store"
	"github.com/ripcordhq/ripcord/pkg/types"
)

const timestampFormat = "20060102-150405"

// HealthReport is the artifact written by a standalone verification run.
type HealthReport struct {
	Target      types.DeploymentTarget    `json:"target"`
	Results     []types.HealthCheckResult `json:"results"`
	Pass        bool                      `json:"pass"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Reporter writes immutable, timestamped report files and appends incidents
// to the durable history. Report files are never overwritten; each is keyed
// by target and timestamp.
type Reporter struct {
	dir    string
	store  *store.Store
	logger zerolog.Logger
}

// New creates a reporter writing under dir. The store may be nil, in which
// case only files are written.
func New(dir string, st *store.Store, logger zerolog.Logger) *Reporter {
	return &Reporter{dir: dir, store: st, logger: logger}
}

// WriteIncident persists an incident record and returns the report path.
func (r *Reporter) WriteIncident(rec *types.IncidentRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	name := fmt.Sprintf("incident-%s-%s-%s.json",
		rec.Target.Service, rec.Target.Environment, rec.StartedAt.Format(timestampFormat))
	path, err := r.write(name, rec)
	if err != nil {
		return "", err
	}

	if r.store != nil {
		if err := r.store.AppendIncident(rec); err != nil {
			return "", fmt.Errorf("failed to append incident to history: %w", err)
		}
	}

	metrics.IncidentsTotal.Inc()
	r.logger.Info().
		Str("path", path).
		Str("outcome", string(rec.Outcome)).
		Msg("incident record written")
	return path, nil
}

// WriteHealth persists a standalone health report and returns its path.
func (r *Reporter) WriteHealth(target types.DeploymentTarget, results []types.HealthCheckResult, pass bool) (string, error) {
	rep := HealthReport{
		Target:      target,
		Results:     results,
		Pass:        pass,
		GeneratedAt: time.Now(),
	}
	name := fmt.Sprintf("health-%s-%s-%s.json",
		target.Service, target.Environment, rep.GeneratedAt.Format(timestampFormat))
	return r.write(name, rep)
}

// write marshals v into a fresh file under the reports dir. An existing file
// with the same name is left untouched; the new report gets a unique suffix.
func (r *Reporter) write(name string, v any) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(r.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		path = filepath.Join(r.dir, uniqueName(name))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func uniqueName(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + "-" + uuid.NewString()[:8] + ext
}
