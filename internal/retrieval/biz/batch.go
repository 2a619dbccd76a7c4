package biz

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kart-io/retrieval-x/internal/model"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// BatchIndex 索引用户某类来源的全部条目。force 为 false 时跳过已索引条目；
// 单个条目失败只记入报告，不中断批处理。
func (ix *Indexer) BatchIndex(ctx context.Context, user string, t model.SourceType, force bool) (*model.BatchReport, error) {
	sources, err := ix.corpus.ListSources(ctx, user, t)
	if err != nil {
		return nil, apierrors.ErrStorage.WithCause(err)
	}

	report := &model.BatchReport{Total: len(sources), Failures: []model.BatchFailure{}}
	for _, src := range sources {
		if !force && src.State().IsIndexed() {
			report.Skipped++
			continue
		}

		if _, err := ix.IndexSource(ctx, user, t, src.SourceID()); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, model.BatchFailure{
				SourceID: src.SourceID(),
				Name:     batchName(src),
				Error:    err.Error(),
			})
			continue
		}
		report.Indexed++
	}

	ctxlog.GetLogger(ctx).Infow("Batch indexing finished",
		"user_id", user, "source_type", t, "force", force,
		"total", report.Total, "indexed", report.Indexed,
		"failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// BatchAll 并发索引文档与 URL。
func (ix *Indexer) BatchAll(ctx context.Context, user string, force bool) (*model.BatchAllReport, error) {
	out := &model.BatchAllReport{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := ix.BatchIndex(gctx, user, model.SourceDocument, force)
		out.Documents = r
		return err
	})
	g.Go(func() error {
		r, err := ix.BatchIndex(gctx, user, model.SourceURL, force)
		out.URLs = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// batchName 文档取文件名，URL 取地址。
func batchName(src model.Source) string {
	if u, ok := src.(*model.URLResource); ok {
		return u.URL
	}
	return src.Name()
}
