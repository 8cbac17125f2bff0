// Package chain generates the follow-on jobs a completed transfer spawns
// according to its job's own chain rules.
package chain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/template"
)

// Generator implements the Chain Generator (C5): given a finished parent
// job/transfer and its own (already-copied-in) chain rules, produce the
// next generation of Job values to enqueue.
type Generator struct {
	logger *zap.Logger
}

// New creates a Generator.
func New() *Generator {
	return &Generator{logger: logger.Named("chain")}
}

// PerFileInput names a single file the parent transfer moved, used to
// construct one chained job per file rather than one per rule.
type PerFileInput struct {
	SourcePath string
	TransferID uuid.UUID
}

// Generate builds the child jobs for a completed parent job. When
// perFileTransfers is non-empty, one child job is produced per
// (file, rule) pair (the per-file path); otherwise each rule produces a
// single legacy job whose source is the parent's whole destination path.
func (g *Generator) Generate(parent *model.Job, perFileTransfers []PerFileInput, now time.Time) []*model.Job {
	rules := parent.Config.ChainRules
	if len(rules) == 0 {
		return nil
	}

	if len(perFileTransfers) > 0 {
		return g.generatePerFile(parent, rules, perFileTransfers, now)
	}
	return g.generateLegacy(parent, rules, now)
}

func (g *Generator) generatePerFile(parent *model.Job, rules []model.ChainRule, files []PerFileInput, now time.Time) []*model.Job {
	var children []*model.Job
	for ruleIdx, rule := range rules {
		for _, file := range files {
			sourcePath := stripRemotePrefix(file.SourcePath)
			dir, filename := path.Split(sourcePath)
			if filename == "" {
				continue
			}
			destPath := template.Expand(rule.DestTemplate, filename, now)

			child := &model.Job{
				ID:     uuid.New(),
				Type:   model.JobTypeChained,
				Status: model.JobStatusPending,
				Config: model.JobConfig{
					SourceEndpointID: parent.Config.DestEndpointID,
					SourcePath:       strings.TrimSuffix(dir, "/"),
					FilePattern:      filename,
					DestEndpointID:   rule.DestEndpointID,
					DestPath:         destPath,
					ParentJobID:      &parent.ID,
					ParentTransferID: transferIDPtr(file.TransferID),
					ChainIndex:       ruleIdx,
					ChainRule:        ruleSummary(rule),
					SourceFile:       file.SourcePath,
				},
				CreatedAt: now,
			}
			children = append(children, child)
		}
	}
	return children
}

func (g *Generator) generateLegacy(parent *model.Job, rules []model.ChainRule, now time.Time) []*model.Job {
	var children []*model.Job
	for ruleIdx, rule := range rules {
		destPath := template.Expand(rule.DestTemplate, parent.Config.DestPath, now)
		child := &model.Job{
			ID:     uuid.New(),
			Type:   model.JobTypeChained,
			Status: model.JobStatusPending,
			Config: model.JobConfig{
				SourceEndpointID: parent.Config.DestEndpointID,
				SourcePath:       parent.Config.DestPath,
				FilePattern:      rule.FilePattern,
				DestEndpointID:   rule.DestEndpointID,
				DestPath:         destPath,
				ParentJobID:      &parent.ID,
				ChainIndex:       ruleIdx,
				ChainRule:        ruleSummary(rule),
			},
			CreatedAt: now,
		}
		children = append(children, child)
	}
	return children
}

// stripRemotePrefix removes a leading "remote:" rclone prefix, matching the
// Endpoint Adapter's own URL construction so path-splitting operates on a
// plain filesystem path.
func stripRemotePrefix(p string) string {
	if idx := strings.Index(p, ":"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func ruleSummary(rule model.ChainRule) string {
	return rule.DestEndpointID.String() + ":" + rule.DestTemplate
}

func transferIDPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
