package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier は管理者の認証情報を検証する。
type CredentialVerifier interface {
	Verify(username, password string) bool
}

// BcryptVerifier は設定された管理者ユーザー名とbcryptハッシュで照合する。
type BcryptVerifier struct {
	username string
	hash     []byte
}

// NewBcryptVerifier はBcryptVerifierを生成する。
// passwordHashがbcryptハッシュとして解釈できない場合はエラーを返す。
func NewBcryptVerifier(username, passwordHash string) (*BcryptVerifier, error) {
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}
	return &BcryptVerifier{
		username: username,
		hash:     []byte(passwordHash),
	}, nil
}

// Verify はユーザー名とパスワードが一致する場合にtrueを返す。
// ユーザー名が一致しなくてもbcryptの比較は必ず実行する。
func (v *BcryptVerifier) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
	return userOK && passOK
}

var _ CredentialVerifier = (*BcryptVerifier)(nil)
