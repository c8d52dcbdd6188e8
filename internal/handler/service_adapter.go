package handler

import (
	"context"

	"github.com/hitoshi/jovenes/internal/content"
	"github.com/hitoshi/jovenes/internal/model"
	"github.com/hitoshi/jovenes/internal/security"
)

// AttachmentURLResolver は保存名から取得URLを組み立てる。
type AttachmentURLResolver interface {
	URL(storedName string) string
}

// ContentServiceAdapter は content.Service を ContentServiceInterface に適合させるアダプタ。
// 添付ファイルの保存名を取得URLに解決し、説明文の表示用HTMLを付けてレスポンス型に変換する。
type ContentServiceAdapter struct {
	svc       *content.Service
	urls      AttachmentURLResolver
	sanitizer security.ContentSanitizerService
}

// NewContentServiceAdapter はContentServiceAdapterを生成する。
func NewContentServiceAdapter(svc *content.Service, urls AttachmentURLResolver, sanitizer security.ContentSanitizerService) *ContentServiceAdapter {
	return &ContentServiceAdapter{svc: svc, urls: urls, sanitizer: sanitizer}
}

// GetDay は1日分のコンテンツをhandlerレスポンス型で返す。
func (a *ContentServiceAdapter) GetDay(ctx context.Context, week, day int) (*dayResponse, error) {
	record, err := a.svc.Get(ctx, week, day)
	if err != nil {
		return nil, err
	}
	resp := toDayResponse(record, a.urls, a.sanitizer)
	return &resp, nil
}

// GetWeek は週の全日をhandlerレスポンス型で返す。
func (a *ContentServiceAdapter) GetWeek(ctx context.Context, week int) (*weekResponse, error) {
	days, err := a.svc.GetWeek(ctx, week)
	if err != nil {
		return nil, err
	}

	resp := &weekResponse{Week: week, Days: make([]dayResponse, 0, len(days))}
	for day := 1; day <= model.DaysPerWeek; day++ {
		resp.Days = append(resp.Days, toDayResponse(days[day], a.urls, a.sanitizer))
	}
	return resp, nil
}

// GetEditForm は編集画面向けの表現をhandlerレスポンス型で返す。
func (a *ContentServiceAdapter) GetEditForm(ctx context.Context, week, day int) (*editFormResponse, error) {
	form, err := a.svc.EditForm(ctx, week, day)
	if err != nil {
		return nil, err
	}
	return &editFormResponse{
		Week:        form.Week,
		Day:         form.Day,
		Title:       form.Title,
		Description: form.Description,
		Activities:  form.Activities,
		Links:       form.Links,
		Files:       toAttachmentResponses(form.Files, a.urls),
		Evidence:    toAttachmentResponses(form.Evidence, a.urls),
	}, nil
}

// UpdateDay はコンテンツを更新し、保存後の内容をhandlerレスポンス型で返す。
func (a *ContentServiceAdapter) UpdateDay(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
	record, err := a.svc.Update(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := toDayResponse(record, a.urls, a.sanitizer)
	return &resp, nil
}

// toDayResponse はドメインのContentRecordをhandlerのレスポンス型に変換する。
// descriptionは保存されたテキストのまま返す。
func toDayResponse(record *model.ContentRecord, urls AttachmentURLResolver, sanitizer security.ContentSanitizerService) dayResponse {
	return dayResponse{
		Week:            record.Week,
		Day:             record.Day,
		Title:           record.Title,
		Description:     record.Description,
		DescriptionHTML: sanitizer.RenderText(record.Description),
		Activities:      nonNil(record.Activities),
		Links:           nonNil(record.Links),
		Files:           toAttachmentResponses(record.Files, urls),
		Evidence:        toAttachmentResponses(record.Evidence, urls),
		UpdatedAt:       record.UpdatedAt,
	}
}

func toAttachmentResponses(refs []model.AttachmentRef, urls AttachmentURLResolver) []attachmentResponse {
	results := make([]attachmentResponse, len(refs))
	for i, ref := range refs {
		results[i] = attachmentResponse{
			Original:   ref.Original,
			StoredName: ref.StoredName,
			URL:        urls.URL(ref.StoredName),
		}
	}
	return results
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
