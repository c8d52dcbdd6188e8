package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Err には原因となった内部エラーを保持し、レスポンスには含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, storage, system
	Action   string // ユーザー向け対処方法
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidKey         = "INVALID_KEY"
	ErrCodeStorageWrite       = "STORAGE_WRITE_FAILED"
	ErrCodePersistence        = "PERSISTENCE_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidKeyError は (week, day) が範囲外の場合のエラーを生成する。
func NewInvalidKeyError(week, day int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidKey,
		Message:  fmt.Sprintf("Semana o día fuera de rango: semana %d, día %d", week, day),
		Category: "validation",
		Action:   fmt.Sprintf("La semana debe estar entre 1 y %d y el día entre 1 y %d.", WeekCount, DaysPerWeek),
	}
}

// NewInvalidWeekError は週が範囲外の場合のエラーを生成する。
func NewInvalidWeekError(week int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidKey,
		Message:  fmt.Sprintf("Semana fuera de rango: %d", week),
		Category: "validation",
		Action:   fmt.Sprintf("La semana debe estar entre 1 y %d.", WeekCount),
	}
}

// NewStorageWriteError は添付ファイルの書き込みに失敗した場合のエラーを生成する。
func NewStorageWriteError(name string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageWrite,
		Message:  fmt.Sprintf("No se pudo guardar el archivo: %s", name),
		Category: "storage",
		Action:   "Inténtelo de nuevo más tarde. Si el problema continúa, contacte al administrador.",
		Err:      err,
	}
}

// NewPersistenceError はコンテンツの保存に失敗した場合のエラーを生成する。
func NewPersistenceError(err error) *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "No se pudo guardar el contenido.",
		Category: "system",
		Action:   "Inténtelo de nuevo más tarde.",
		Err:      err,
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Credenciales incorrectas",
		Category: "auth",
		Action:   "Verifique el usuario y la contraseña.",
	}
}

// NewUnauthorizedError は未認証アクセスのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Se requiere autenticación.",
		Category: "auth",
		Action:   "Inicie sesión.",
	}
}

// NewPayloadTooLargeError はリクエストサイズ上限を超えた場合のエラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("La solicitud supera el tamaño máximo permitido (%d bytes).", limit),
		Category: "validation",
		Action:   "Suba menos archivos o archivos más pequeños.",
	}
}

// NewInvalidRequestError はリクエストの解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Solicitud no válida: %s", reason),
		Category: "validation",
		Action:   "Revise los datos enviados.",
	}
}

// NewInternalError は分類できない内部エラーを利用者向けに表すエラーを生成する。
// 詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Ocurrió un error interno.",
		Category: "system",
		Action:   "Espere un momento y vuelva a intentarlo.",
	}
}
