// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

const (
	// WeekCount はカリキュラムの週数。
	WeekCount = 15
	// DaysPerWeek は1週あたりの日数。
	DaysPerWeek = 3
)

// Category は添付ファイルの種別を表す。
// 保存先やポリシーには影響せず、保存名のプレフィックスのみを決める。
type Category string

const (
	// CategoryGeneral は一般の添付ファイル（files）。
	CategoryGeneral Category = "general"
	// CategoryEvidence は実施証跡の添付ファイル（evidence）。
	CategoryEvidence Category = "evidence"
)

// AttachmentRef はアップロード済みファイルへの参照を表す。
// StoredName はストア全体で一意であり、削除と取得パス生成の唯一のキーとなる。
type AttachmentRef struct {
	Original   string `json:"original"`
	StoredName string `json:"saved"`
}

// ContentRecord は (week, day) で一意に識別される1日分のコンテンツ。
type ContentRecord struct {
	Week        int
	Day         int
	Title       string
	Description string
	Activities  []string
	Links       []string
	Files       []AttachmentRef
	Evidence    []AttachmentRef
	UpdatedAt   *time.Time
}

// DefaultTitle は未設定時のタイトル（"Día {day}"）を返す。
func DefaultTitle(day int) string {
	return fmt.Sprintf("Día %d", day)
}

// NewDefaultContentRecord は行が存在しない場合のデフォルトビューを生成する。
// リストは nil ではなく空スライスで返す。
func NewDefaultContentRecord(week, day int) *ContentRecord {
	return &ContentRecord{
		Week:        week,
		Day:         day,
		Title:       DefaultTitle(day),
		Description: "",
		Activities:  []string{},
		Links:       []string{},
		Files:       []AttachmentRef{},
		Evidence:    []AttachmentRef{},
	}
}

// ValidKey は week と day がカリキュラムの範囲内かどうかを判定する。
func ValidKey(week, day int) bool {
	return ValidWeek(week) && day >= 1 && day <= DaysPerWeek
}

// ValidWeek は week が 1..WeekCount の範囲内かどうかを判定する。
func ValidWeek(week int) bool {
	return week >= 1 && week <= WeekCount
}
