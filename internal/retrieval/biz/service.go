package biz

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/validator"
)

// Enqueuer 接收后台索引请求。
type Enqueuer interface {
	Enqueue(ctx context.Context, user string, t model.SourceType, id string) error
}

// Service 文档与 URL 的元数据管理。新建条目后提交后台索引。
type Service struct {
	corpus *store.Corpus
	queue  Enqueuer
	now    func() time.Time
	newID  func() string
}

// NewService 创建服务实例。
func NewService(corpus *store.Corpus, queue Enqueuer) *Service {
	return &Service{
		corpus: corpus,
		queue:  queue,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// UploadInput 上传文档参数。
type UploadInput struct {
	Filename    string
	ContentType string
	Category    string
	Data        []byte
}

// URLInput 新建 URL 参数。
type URLInput struct {
	URL              string
	Title            string
	Description      string
	Category         string
	CredibilityScore *int
}

// URLPatch URL 部分更新，nil 字段保持不变。
type URLPatch struct {
	Title            *string
	Description      *string
	Category         *string
	CredibilityScore *int
}

func storeErr(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.ErrSourceNotFound.WithMessagef("%s %s not found", kind, id)
	}
	if errors.Is(err, store.ErrInvalidKey) {
		return apierrors.ErrInvalidParam.WithCause(err)
	}
	return apierrors.ErrStorage.WithCause(err)
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Service) enqueue(ctx context.Context, user string, t model.SourceType, id string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, user, t, id); err != nil {
		ctxlog.GetLogger(ctx).Warnw("Background indexing not scheduled", "source_type", t, "source_id", id, "error", err.Error())
	}
}

func checkCredibility(score *int) error {
	if score != nil && (*score < 1 || *score > 5) {
		return apierrors.ErrInvalidCredibility
	}
	return nil
}

// ---- documents ----

// UploadDocument 保存文档内容与元数据，并提交后台索引。
func (s *Service) UploadDocument(ctx context.Context, user string, in UploadInput) (*model.Document, error) {
	if !validator.IsAllowedFile(in.Filename) {
		return nil, apierrors.ErrUnsupportedFile.WithMessagef("unsupported file type: %s (allowed: %s)",
			in.Filename, strings.Join(validator.AllowedFileExtensions, ", "))
	}

	doc := &model.Document{
		ID:          s.newID(),
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		UploadDate:  s.timestamp(),
		UserID:      user,
		Category:    in.Category,
		IndexState:  model.NotIndexed(),
	}
	if err := s.corpus.PutContent(ctx, user, doc.ID, in.Data); err != nil {
		return nil, storeErr(err, "document", doc.ID)
	}
	if err := s.corpus.AddDocument(ctx, user, doc); err != nil {
		return nil, storeErr(err, "document", doc.ID)
	}

	logger.Infow("Document uploaded", "user_id", user, "document_id", doc.ID, "filename", doc.Filename, "size", doc.Size)
	s.enqueue(ctx, user, model.SourceDocument, doc.ID)
	return doc, nil
}

// ListDocuments 列出文档，category 非空时按类别过滤。
func (s *Service) ListDocuments(ctx context.Context, user, category string) ([]*model.Document, error) {
	docs, err := s.corpus.ListDocuments(ctx, user)
	if err != nil {
		return nil, storeErr(err, "documents", user)
	}
	if category == "" {
		return docs, nil
	}
	return slices.DeleteFunc(docs, func(d *model.Document) bool { return d.Category != category }), nil
}

func (s *Service) GetDocument(ctx context.Context, user, id string) (*model.Document, error) {
	doc, err := s.corpus.GetDocument(ctx, user, id)
	if err != nil {
		return nil, storeErr(err, "document", id)
	}
	return doc, nil
}

// GetDocumentContent 返回文档元数据与原始内容。
func (s *Service) GetDocumentContent(ctx context.Context, user, id string) (*model.Document, []byte, error) {
	doc, err := s.GetDocument(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.corpus.GetContent(ctx, user, id)
	if err != nil {
		return nil, nil, storeErr(err, "document content", id)
	}
	return doc, data, nil
}

func (s *Service) UpdateDocumentCategory(ctx context.Context, user, id, category string) (*model.Document, error) {
	doc, err := s.corpus.UpdateDocument(ctx, user, id, func(d *model.Document) error {
		d.Category = category
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "document", id)
	}
	return doc, nil
}

// DeleteDocument 删除元数据与内容；分块数据不再可达，不主动清理。
func (s *Service) DeleteDocument(ctx context.Context, user, id string) error {
	if err := s.corpus.DeleteDocument(ctx, user, id); err != nil {
		return storeErr(err, "document", id)
	}
	logger.Infow("Document deleted", "user_id", user, "document_id", id)
	return nil
}

// DocumentCategories 返回排序去重后的文档类别。
func (s *Service) DocumentCategories(ctx context.Context, user string) ([]string, error) {
	docs, err := s.corpus.ListDocuments(ctx, user)
	if err != nil {
		return nil, storeErr(err, "documents", user)
	}
	cats := make([]string, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, d.Category)
	}
	return distinct(cats), nil
}

// ---- urls ----

// CreateURL 登记 URL 并提交后台索引。
func (s *Service) CreateURL(ctx context.Context, user string, in URLInput) (*model.URLResource, error) {
	if err := validator.Var(in.URL, "required,httpurl"); err != nil {
		return nil, apierrors.ErrInvalidURL.WithMessagef("invalid url: %q", in.URL)
	}
	if err := checkCredibility(in.CredibilityScore); err != nil {
		return nil, err
	}

	u := &model.URLResource{
		ID:               s.newID(),
		URL:              in.URL,
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		CredibilityScore: in.CredibilityScore,
		AddedDate:        s.timestamp(),
		UserID:           user,
		IndexState:       model.NotIndexed(),
	}
	if err := s.corpus.AddURL(ctx, user, u); err != nil {
		return nil, storeErr(err, "url", u.ID)
	}

	logger.Infow("URL registered", "user_id", user, "url_id", u.ID, "url", u.URL)
	s.enqueue(ctx, user, model.SourceURL, u.ID)
	return u, nil
}

func (s *Service) ListURLs(ctx context.Context, user, category string) ([]*model.URLResource, error) {
	urls, err := s.corpus.ListURLs(ctx, user)
	if err != nil {
		return nil, storeErr(err, "urls", user)
	}
	if category == "" {
		return urls, nil
	}
	return slices.DeleteFunc(urls, func(u *model.URLResource) bool { return u.Category != category }), nil
}

func (s *Service) GetURL(ctx context.Context, user, id string) (*model.URLResource, error) {
	u, err := s.corpus.GetURL(ctx, user, id)
	if err != nil {
		return nil, storeErr(err, "url", id)
	}
	return u, nil
}

// UpdateURL 部分更新；索引状态与分块不受影响。
func (s *Service) UpdateURL(ctx context.Context, user, id string, patch URLPatch) (*model.URLResource, error) {
	if err := checkCredibility(patch.CredibilityScore); err != nil {
		return nil, err
	}
	u, err := s.corpus.UpdateURL(ctx, user, id, func(u *model.URLResource) error {
		if patch.Title != nil {
			u.Title = *patch.Title
		}
		if patch.Description != nil {
			u.Description = *patch.Description
		}
		if patch.Category != nil {
			u.Category = *patch.Category
		}
		if patch.CredibilityScore != nil {
			v := *patch.CredibilityScore
			u.CredibilityScore = &v
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "url", id)
	}
	return u, nil
}

func (s *Service) DeleteURL(ctx context.Context, user, id string) error {
	if err := s.corpus.DeleteURL(ctx, user, id); err != nil {
		return storeErr(err, "url", id)
	}
	logger.Infow("URL deleted", "user_id", user, "url_id", id)
	return nil
}

func (s *Service) URLCategories(ctx context.Context, user string) ([]string, error) {
	urls, err := s.corpus.ListURLs(ctx, user)
	if err != nil {
		return nil, storeErr(err, "urls", user)
	}
	cats := make([]string, 0, len(urls))
	for _, u := range urls {
		cats = append(cats, u.Category)
	}
	return distinct(cats), nil
}

func distinct(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// ---- stats ----

// SourceStats 某类来源的索引统计。
type SourceStats struct {
	Total      int `json:"total"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
	NotIndexed int `json:"not_indexed"`
	Chunks     int `json:"chunks"`
	// Orphaned 元数据已删除但仍残留的分块数据条数
	Orphaned int `json:"orphaned"`
}

// Stats 用户知识库统计。
type Stats struct {
	Documents SourceStats `json:"documents"`
	URLs      SourceStats `json:"urls"`
}

// Stats 汇总用户文档与 URL 的索引状态，并统计删除后残留的分块。
func (s *Service) Stats(ctx context.Context, user string) (*Stats, error) {
	out := &Stats{}
	for _, t := range model.SourceTypes {
		sources, err := s.corpus.ListSources(ctx, user, t)
		if err != nil {
			return nil, storeErr(err, t.Plural(), user)
		}
		st := &out.Documents
		if t == model.SourceURL {
			st = &out.URLs
		}
		st.Total = len(sources)
		known := make(map[string]struct{}, len(sources))
		for _, src := range sources {
			known[src.SourceID()] = struct{}{}
			switch src.State().Status() {
			case model.StatusIndexed:
				st.Indexed++
				st.Chunks += src.State().ChunkCount()
			case model.StatusFailed:
				st.Failed++
			default:
				st.NotIndexed++
			}
		}

		ids, err := s.corpus.ListChunkIDs(ctx, user, t)
		if err != nil {
			return nil, storeErr(err, t.Plural(), user)
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				st.Orphaned++
			}
		}
	}
	return out, nil
}
