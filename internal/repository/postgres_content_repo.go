package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/jovenes/internal/model"
)

// PostgresContentRepo はPostgreSQLを使用した日別コンテンツリポジトリ。
// activities、links、files、evidence はJSON配列としてTEXTカラムに保存する。
type PostgresContentRepo struct {
	db *sql.DB
}

// NewPostgresContentRepo はPostgresContentRepoを生成する。
func NewPostgresContentRepo(db *sql.DB) *PostgresContentRepo {
	return &PostgresContentRepo{db: db}
}

// FindByKey は (week, day) のコンテンツを取得する。見つからない場合はnilを返す。
// NULLまたは空文字列のリストカラムは空スライスとして扱う。
func (r *PostgresContentRepo) FindByKey(ctx context.Context, week, day int) (*model.ContentRecord, error) {
	var title, description, activities, links, files, evidence sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT title, description, activities, links, files, evidence, updated_at
		 FROM daily_content WHERE week = $1 AND day = $2`,
		week, day,
	).Scan(&title, &description, &activities, &links, &files, &evidence, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find daily content (week=%d, day=%d): %w", week, day, err)
	}

	record := &model.ContentRecord{
		Week:        week,
		Day:         day,
		Title:       nullStringValue(title),
		Description: nullStringValue(description),
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		record.UpdatedAt = &t
	}

	if record.Activities, err = decodeLines(activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities (week=%d, day=%d): %w", week, day, err)
	}
	if record.Links, err = decodeLines(links); err != nil {
		return nil, fmt.Errorf("failed to decode links (week=%d, day=%d): %w", week, day, err)
	}
	if record.Files, err = decodeAttachments(files); err != nil {
		return nil, fmt.Errorf("failed to decode files (week=%d, day=%d): %w", week, day, err)
	}
	if record.Evidence, err = decodeAttachments(evidence); err != nil {
		return nil, fmt.Errorf("failed to decode evidence (week=%d, day=%d): %w", week, day, err)
	}

	return record, nil
}

// Upsert はコンテンツを1回のINSERT ... ON CONFLICTで書き込む。
func (r *PostgresContentRepo) Upsert(ctx context.Context, record *model.ContentRecord) error {
	activities, err := encodeJSON(record.Activities)
	if err != nil {
		return err
	}
	links, err := encodeJSON(record.Links)
	if err != nil {
		return err
	}
	files, err := encodeJSON(record.Files)
	if err != nil {
		return err
	}
	evidence, err := encodeJSON(record.Evidence)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO daily_content (week, day, title, description, activities, links, files, evidence, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (week, day) DO UPDATE SET
		    title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    activities = EXCLUDED.activities,
		    links = EXCLUDED.links,
		    files = EXCLUDED.files,
		    evidence = EXCLUDED.evidence,
		    updated_at = EXCLUDED.updated_at`,
		record.Week, record.Day, record.Title, record.Description,
		activities, links, files, evidence,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily content (week=%d, day=%d): %w", record.Week, record.Day, err)
	}
	return nil
}

// ListStoredNames は全レコードから参照されている保存名を返す。
func (r *PostgresContentRepo) ListStoredNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT files, evidence FROM daily_content`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var files, evidence sql.NullString
		if err := rows.Scan(&files, &evidence); err != nil {
			return nil, fmt.Errorf("failed to scan attachments: %w", err)
		}
		for _, col := range []sql.NullString{files, evidence} {
			refs, err := decodeAttachments(col)
			if err != nil {
				return nil, fmt.Errorf("failed to decode attachments: %w", err)
			}
			for _, ref := range refs {
				names = append(names, ref.StoredName)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return names, nil
}

// decodeLines はJSON配列のTEXTカラムを文字列スライスに変換する。
func decodeLines(ns sql.NullString) ([]string, error) {
	lines := []string{}
	if !ns.Valid || ns.String == "" {
		return lines, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &lines); err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// decodeAttachments はJSON配列のTEXTカラムをAttachmentRefスライスに変換する。
func decodeAttachments(ns sql.NullString) ([]model.AttachmentRef, error) {
	refs := []model.AttachmentRef{}
	if !ns.Valid || ns.String == "" {
		return refs, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &refs); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []model.AttachmentRef{}
	}
	return refs, nil
}

// encodeJSON は値をJSON文字列に変換する。nilスライスは空配列として書き込む。
func encodeJSON[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ContentRepository = (*PostgresContentRepo)(nil)
