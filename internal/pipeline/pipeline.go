package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/db"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/snapshot"
	"github.com/vivaro/vivaro/internal/source"
)

// Run classifies every community, clusters the underserved ones and
// synthesizes recommendations.
func Run(ctx context.Context, ac *AnalysisContext) (*model.Result, error) {
	res := &model.Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", res.RunID))

	stage := func(name string, fn func() error) error {
		start := time.Now()
		if err := fn(); err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
			return err
		}
		log.Debug("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	if err := stage("classify", func() error {
		var err error
		res.Records, err = Classify(ctx, ac)
		return err
	}); err != nil {
		return nil, err
	}

	underserved := res.Underserved()
	if err := stage("cluster", func() error {
		var err error
		res.Clustering, err = ClusterRecords(underserved, ac.Config.Cluster)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage("recommend", func() error {
		var err error
		res.Recommendations, err = Synthesize(underserved, res.Clustering, ac.Config.Recommend, ac.Urban)
		return err
	}); err != nil {
		return nil, err
	}

	res.Duration = time.Since(res.StartedAt)
	log.Info("pipeline: analysis complete",
		zap.Int("communities", len(res.Records)),
		zap.Int("underserved", len(underserved)),
		zap.Int("clusters", res.Clustering.Len()),
		zap.Int("recommendations", len(res.Recommendations)),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// Load reads every configured source, builds the snapshot and indexes it.
func Load(ctx context.Context, cfg *config.Config, pool db.Pool) (*AnalysisContext, error) {
	if cfg.Data.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Data.LoadTimeout)
		defer cancel()
	}

	in, err := source.LoadInputs(ctx, cfg.Data, pool)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load sources")
	}
	snap, err := snapshot.Build(in, snapshot.Options{SimplifyTolerance: cfg.Data.SimplifyTolerance})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build snapshot")
	}
	return NewContext(snap, cfg)
}

// NewLoader binds Load to a configuration and pool.
func NewLoader(cfg *config.Config, pool db.Pool) Loader {
	return func(ctx context.Context) (*AnalysisContext, error) {
		return Load(ctx, cfg, pool)
	}
}
