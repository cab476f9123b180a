package cron

import (
	"context"
	"fmt"

	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
)

const maxLoggedIssues = 50

// HierarchyIntegrityJobParams wires the hierarchy sweep.
type HierarchyIntegrityJobParams struct {
	Logger    *logger.Logger
	Hierarchy hierarchySnapshotter
	Metrics   *metrics.CommissionMetrics
}

type hierarchySnapshotter interface {
	Snapshot(ctx context.Context) (*distributors.Tree, error)
}

// NewHierarchyIntegrityJob reports dangling parents, cycles and stale level
// snapshots. It never modifies the hierarchy.
func NewHierarchyIntegrityJob(params HierarchyIntegrityJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Hierarchy == nil {
		return nil, fmt.Errorf("hierarchy required")
	}
	return &hierarchyIntegrityJob{
		logg:      params.Logger,
		hierarchy: params.Hierarchy,
		metrics:   params.Metrics,
	}, nil
}

type hierarchyIntegrityJob struct {
	logg      *logger.Logger
	hierarchy hierarchySnapshotter
	metrics   *metrics.CommissionMetrics
}

func (j *hierarchyIntegrityJob) Name() string { return "hierarchy-integrity" }

func (j *hierarchyIntegrityJob) Run(ctx context.Context) error {
	tree, err := j.hierarchy.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("hierarchy integrity: %w", err)
	}
	issues := distributors.CheckIntegrity(tree)

	counts := map[distributors.IssueKind]int{
		distributors.IssueMissingParent: 0,
		distributors.IssueCycle:         0,
		distributors.IssueLevelMismatch: 0,
	}
	for i, issue := range issues {
		counts[issue.Kind]++
		if i >= maxLoggedIssues {
			continue
		}
		fields := map[string]any{
			"kind":           string(issue.Kind),
			"distributor_id": issue.DistributorID.String(),
		}
		if issue.ParentID != nil {
			fields["parent_id"] = issue.ParentID.String()
		}
		switch issue.Kind {
		case distributors.IssueCycle:
			fields["cycle_size"] = len(issue.Members)
		case distributors.IssueLevelMismatch:
			fields["stored_level"] = issue.StoredLevel
			fields["expected_level"] = issue.ExpectedLevel
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "hierarchy anomaly")
	}
	for kind, n := range counts {
		j.metrics.SetHierarchyIssues(string(kind), n)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"distributors":    tree.Len(),
		"issues":          len(issues),
		"missing_parents": counts[distributors.IssueMissingParent],
		"cycles":          counts[distributors.IssueCycle],
		"level_mismatch":  counts[distributors.IssueLevelMismatch],
	})
	j.logg.Info(logCtx, "hierarchy integrity sweep complete")
	return nil
}
