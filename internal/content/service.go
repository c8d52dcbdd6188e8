// Package content はカリキュラムの日ごとのコンテンツ管理のドメインロジックを提供する。
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jovenes/internal/metrics"
	"github.com/hitoshi/jovenes/internal/model"
	"github.com/hitoshi/jovenes/internal/repository"
)

// AttachmentStorer は添付ファイルの保存を担う。
type AttachmentStorer interface {
	// Store はBlobを一意な保存名で書き込みAttachmentRefを返す。
	Store(ctx context.Context, category model.Category, data []byte, originalName string) (model.AttachmentRef, error)
	// Discard は同一更新内で保存済みのBlobをベストエフォートで取り消す。
	Discard(ctx context.Context, refs []model.AttachmentRef)
}

// Upload はアップロードされた1ファイル分のデータ。
type Upload struct {
	Filename string
	Data     []byte
}

// UpdateInput は1日分のコンテンツ更新の入力。
// Remove*Keys には既存AttachmentRefの保存名を指定する。
type UpdateInput struct {
	Week               int
	Day                int
	Title              string
	Description        string
	ActivitiesText     string
	LinksText          string
	NewFiles           []Upload
	RemoveFileKeys     []string
	NewEvidence        []Upload
	RemoveEvidenceKeys []string
}

// EditForm は編集画面向けの表現。activitiesとlinksは改行区切りのテキストになる。
type EditForm struct {
	Week        int
	Day         int
	Title       string
	Description string
	Activities  string
	Links       string
	Files       []model.AttachmentRef
	Evidence    []model.AttachmentRef
}

// Service はコンテンツ管理のサービス層。
// 読み取りは毎回リポジトリから取得し、レコードをキャッシュしない。
type Service struct {
	repo    repository.ContentRepository
	store   AttachmentStorer
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ContentRepository,
	store AttachmentStorer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		metrics: collector,
	}
}

// Get は (week, day) のコンテンツを返す。行が存在しない場合はデフォルトビューを返す。
func (s *Service) Get(ctx context.Context, week, day int) (*model.ContentRecord, error) {
	if !model.ValidKey(week, day) {
		return nil, model.NewInvalidKeyError(week, day)
	}

	record, err := s.repo.FindByKey(ctx, week, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load content week=%d day=%d: %w", week, day, err)
	}
	if record == nil {
		return model.NewDefaultContentRecord(week, day), nil
	}
	if strings.TrimSpace(record.Title) == "" {
		record.Title = model.DefaultTitle(day)
	}
	return record, nil
}

// GetWeek は週の全日（1..DaysPerWeek）のコンテンツを返す。
// 未登録の日はデフォルトビューで埋めるため、常にDaysPerWeek件を返す。
func (s *Service) GetWeek(ctx context.Context, week int) (map[int]*model.ContentRecord, error) {
	if !model.ValidWeek(week) {
		return nil, model.NewInvalidWeekError(week)
	}

	days := make(map[int]*model.ContentRecord, model.DaysPerWeek)
	for day := 1; day <= model.DaysPerWeek; day++ {
		record, err := s.Get(ctx, week, day)
		if err != nil {
			return nil, err
		}
		days[day] = record
	}
	return days, nil
}

// EditForm は編集画面向けに行リストを改行区切りテキストへ変換して返す。
func (s *Service) EditForm(ctx context.Context, week, day int) (*EditForm, error) {
	record, err := s.Get(ctx, week, day)
	if err != nil {
		return nil, err
	}
	return &EditForm{
		Week:        record.Week,
		Day:         record.Day,
		Title:       record.Title,
		Description: record.Description,
		Activities:  JoinLines(record.Activities),
		Links:       JoinLines(record.Links),
		Files:       record.Files,
		Evidence:    record.Evidence,
	}, nil
}

// Update は1日分のコンテンツを丸ごと置き換える。
//
// 既存の添付ファイルから保存名が指定されたものを除外し、その後に新規ファイルを追加する。
// filesとevidenceは独立して処理する。新規Blobはすべて書き込んでからレコードを保存し、
// 途中で失敗した場合は書き込み済みのBlobを取り消してレコードは更新しない。
// 除外されたBlob自体は削除せず、孤立Blobの回収はクリーンアップワーカーが行う。
func (s *Service) Update(ctx context.Context, in UpdateInput) (*model.ContentRecord, error) {
	if !model.ValidKey(in.Week, in.Day) {
		return nil, model.NewInvalidKeyError(in.Week, in.Day)
	}

	activities := ParseLines(in.ActivitiesText)
	links := ParseLines(in.LinksText)

	current, err := s.repo.FindByKey(ctx, in.Week, in.Day)
	if err != nil {
		return nil, model.NewPersistenceError(fmt.Errorf("failed to load current content: %w", err))
	}
	if current == nil {
		current = model.NewDefaultContentRecord(in.Week, in.Day)
	}

	files, detachedFiles := removeByStoredName(current.Files, in.RemoveFileKeys)
	evidence, detachedEvidence := removeByStoredName(current.Evidence, in.RemoveEvidenceKeys)

	var staged []model.AttachmentRef
	addedFiles, err := s.stage(ctx, model.CategoryGeneral, in.NewFiles, &staged)
	if err != nil {
		return nil, err
	}
	addedEvidence, err := s.stage(ctx, model.CategoryEvidence, in.NewEvidence, &staged)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = model.DefaultTitle(in.Day)
	}
	record := &model.ContentRecord{
		Week:        in.Week,
		Day:         in.Day,
		Title:       title,
		Description: in.Description,
		Activities:  activities,
		Links:       links,
		Files:       append(files, addedFiles...),
		Evidence:    append(evidence, addedEvidence...),
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		s.store.Discard(context.WithoutCancel(ctx), staged)
		return nil, model.NewPersistenceError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordContentUpdate()
		s.metrics.RecordAttachmentsStored(string(model.CategoryGeneral), len(addedFiles))
		s.metrics.RecordAttachmentsStored(string(model.CategoryEvidence), len(addedEvidence))
		s.metrics.RecordAttachmentsDetached(string(model.CategoryGeneral), detachedFiles)
		s.metrics.RecordAttachmentsDetached(string(model.CategoryEvidence), detachedEvidence)
	}

	slog.Info("content updated",
		slog.Int("week", in.Week),
		slog.Int("day", in.Day),
		slog.Int("files_added", len(addedFiles)),
		slog.Int("files_detached", detachedFiles),
		slog.Int("evidence_added", len(addedEvidence)),
		slog.Int("evidence_detached", detachedEvidence),
	)

	return record, nil
}

// stage はアップロードを順に保存し、保存済みの参照をstagedにも積む。
// ファイル名が空のアップロード（未選択のファイル入力）は無視する。
// 保存に失敗した場合はそれまでにstagedへ積まれたBlobをすべて取り消す。
func (s *Service) stage(ctx context.Context, category model.Category, uploads []Upload, staged *[]model.AttachmentRef) ([]model.AttachmentRef, error) {
	added := []model.AttachmentRef{}
	for _, up := range uploads {
		if up.Filename == "" {
			continue
		}
		ref, err := s.store.Store(ctx, category, up.Data, up.Filename)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordStorageFailure()
			}
			slog.Error("failed to store attachment",
				slog.String("category", string(category)),
				slog.String("filename", up.Filename),
				slog.String("error", err.Error()),
			)
			s.store.Discard(context.WithoutCancel(ctx), *staged)
			return nil, err
		}
		added = append(added, ref)
		*staged = append(*staged, ref)
	}
	return added, nil
}

// removeByStoredName は保存名が keys に含まれる参照を除いた新しいスライスと除外数を返す。
// 存在しない保存名の指定は無視する。
func removeByStoredName(refs []model.AttachmentRef, keys []string) ([]model.AttachmentRef, int) {
	remove := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		remove[k] = struct{}{}
	}

	kept := make([]model.AttachmentRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := remove[ref.StoredName]; ok {
			continue
		}
		kept = append(kept, ref)
	}
	return kept, len(refs) - len(kept)
}
