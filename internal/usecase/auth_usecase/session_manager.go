package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"boilerplate/internal/cryptox"
	"boilerplate/internal/domain/model"
	"boilerplate/internal/logging"
	"boilerplate/internal/repository"
	"boilerplate/internal/token"
)

// 会員登録の入力
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
	Photo    string
}

// レスポンスに出すユーザー（パスワード・暗号文は出さない）
type UserView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Photo       string     `json:"photo,omitempty"`
	Role        model.Role `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// register/login/refreshの出力
type SessionOutput struct {
	User         UserView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

// SessionManagerはユーザーごとに有効なセッションを常に1つにする。
// login/refreshのたびに古いrefresh行を全部消して1件作り直す（同一Tx）。
// キャッシュへの書き込みはcommit後のベストエフォート。
type SessionManager struct {
	users    repository.UserRepository
	tx       repository.TransactionManager
	issuer   TokenIssuer
	sessions SessionStore
	hasher   PasswordHasher
	verifier PasswordVerifier
	sealer   FieldSealer // nilなら電話番号は受け付けない
	idGen    IDGenerator
	clock    Clock
	log      logging.Logger
}

// DI
func NewSessionManager(
	users repository.UserRepository,
	tx repository.TransactionManager,
	issuer TokenIssuer,
	sessions SessionStore,
	hasher PasswordHasher,
	verifier PasswordVerifier,
	sealer FieldSealer,
	idGen IDGenerator,
	clock Clock,
	log logging.Logger,
) *SessionManager {
	return &SessionManager{
		users:    users,
		tx:       tx,
		issuer:   issuer,
		sessions: sessions,
		hasher:   hasher,
		verifier: verifier,
		sealer:   sealer,
		idGen:    idGen,
		clock:    clock,
		log:      log,
	}
}

// 会員登録。作成と同時にログイン状態にする。
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (SessionOutput, error) {
	var out SessionOutput

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return out, ErrValidation
	}
	if !isValidEmailFormat(in.Email) {
		return out, ErrInvalidEmailFormat
	}
	if len(in.Password) < minPasswordLength {
		return out, ErrPasswordTooShort
	}
	if isWeakPassword(in.Password) {
		return out, ErrWeakPassword
	}

	// email重複チェック（最終的にはunique制約で弾く）
	existing, err := m.users.FindByEmail(ctx, in.Email)
	if err == nil && existing != nil {
		return out, ErrEmailAlreadyExists
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return out, err
	}

	hashed, err := m.hasher.Hash(in.Password)
	if err != nil {
		return out, err
	}

	now := m.clock.Now()
	user := &model.User{
		ID:           m.idGen.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Address:      in.Address,
		Photo:        in.Photo,
		Role:         model.RoleUser, // 初期はUSER
		IsActive:     true,
		LastLoginAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if phone := strings.TrimSpace(in.Phone); phone != "" {
		if m.sealer == nil {
			return out, ErrEncryptionUnavailable
		}
		p, err := m.sealer.Seal(phone)
		if err != nil {
			return out, fmt.Errorf("encrypt phone: %w", err)
		}
		user.PhoneCiphertext = p.Ciphertext
		user.PhoneKeyVersion = p.Version
	}

	return m.rotate(ctx, user, func(r repository.TxRepos) error {
		if err := r.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return ErrEmailAlreadyExists
			}
			return err
		}
		return nil
	})
}

// ログイン。以前のセッションは全部無効になる。
func (m *SessionManager) Login(ctx context.Context, email, password string) (SessionOutput, error) {
	var out SessionOutput

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return out, ErrValidation
	}

	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return out, ErrInvalidCredentials
		}
		return out, err
	}

	if ok := m.verifier.Verify(password, user.PasswordHash); !ok {
		return out, ErrInvalidCredentials
	}

	//停止ユーザーはログイン不可（パスワードが合った後でだけ伝える）
	if !user.IsActive {
		return out, ErrUserInactive
	}

	now := m.clock.Now()
	user.LastLoginAt = &now

	return m.rotate(ctx, user, func(r repository.TxRepos) error {
		return r.Users().TouchLastLogin(ctx, user.ID, now)
	})
}

// Refreshは保存済みのrefresh行と完全一致した時だけ新しいペアを出す。
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (SessionOutput, error) {
	var out SessionOutput

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return out, ErrValidation
	}

	claims, err := m.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrMissingSecret) {
			return out, err
		}
		return out, ErrInvalidOrExpiredToken
	}

	user, err := m.users.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return out, ErrInvalidOrExpiredToken
		}
		return out, err
	}
	if !user.IsActive {
		return out, ErrUserInactive
	}

	presented := hashToken(refreshToken)
	return m.rotate(ctx, user, func(r repository.TxRepos) error {
		// 行の確認も同じTxの中で行う（並行したrotateとの競合はcommitで決まる）
		if _, err := r.RefreshTokens().FindByUserAndHash(ctx, user.ID, presented); err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}
		return nil
	})
}

// Logoutはrefresh行とキャッシュを全部消す。何度呼んでも成功。
func (m *SessionManager) Logout(ctx context.Context, userID string) error {
	return m.revoke(ctx, userID, nil)
}

// 管理者による強制ログアウト。対象ユーザーのLogoutと同じで、監査ログを同じTxで残す。
func (m *SessionManager) ForceLogout(ctx context.Context, actorID, targetUserID string) error {
	err := m.revoke(ctx, targetUserID, func(r repository.TxRepos, removed int64) error {
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionForceLogout,
			ResourceType: model.AuditResourceUser,
			ResourceID:   targetUserID,
			BeforeJSON:   fmt.Sprintf(`{"refreshTokens":%d}`, removed),
			AfterJSON:    `{"refreshTokens":0}`,
			CreatedAt:    m.clock.Now(),
		})
	})
	if err != nil {
		return err
	}
	m.log.Info(ctx, "session revoked by admin", "actor_user_id", actorID, "target_user_id", targetUserID)
	return nil
}

func (m *SessionManager) revoke(ctx context.Context, userID string, audit func(r repository.TxRepos, removed int64) error) error {
	if _, err := m.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := m.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		removed, err := r.RefreshTokens().DeleteAllByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if audit != nil {
			return audit(r, removed)
		}
		return nil
	}); err != nil {
		return err
	}

	m.sessions.Delete(ctx, userID, token.TypeAccess)
	m.sessions.Delete(ctx, userID, token.TypeRefresh)
	return nil
}

func (m *SessionManager) Profile(ctx context.Context, userID string) (UserView, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return UserView{}, ErrUserNotFound
		}
		return UserView{}, err
	}
	return m.view(ctx, user), nil
}

// rotateは新しいペアを発行し、beforeと同じTxでrefresh行を入れ替える。
func (m *SessionManager) rotate(ctx context.Context, user *model.User, before func(r repository.TxRepos) error) (SessionOutput, error) {
	var out SessionOutput

	id := token.Identity{ID: user.ID, Email: user.Email, Role: string(user.Role)}
	access, err := m.issuer.IssueAccess(id)
	if err != nil {
		return out, err
	}
	refresh, err := m.issuer.IssueRefresh(id)
	if err != nil {
		return out, err
	}

	now := m.clock.Now()
	row := &model.RefreshToken{
		ID:        m.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(token.RefreshTTL),
		CreatedAt: now,
	}

	err = m.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if before != nil {
			if err := before(r); err != nil {
				return err
			}
		}
		if _, err := r.RefreshTokens().DeleteAllByUserID(ctx, user.ID); err != nil {
			return err
		}
		return r.RefreshTokens().Create(ctx, row)
	})
	if err != nil {
		return out, err
	}

	// commit後。失敗しても戻さない（次の書き込みで揃う）
	m.sessions.Delete(ctx, user.ID, token.TypeAccess)
	m.sessions.Delete(ctx, user.ID, token.TypeRefresh)
	if _, ok := m.sessions.Store(ctx, user.ID, access, token.TypeAccess, token.AccessTTL); !ok {
		m.log.Warn(ctx, "access token not cached", "user_id", user.ID)
	}
	if _, ok := m.sessions.Store(ctx, user.ID, refresh, token.TypeRefresh, token.RefreshTTL); !ok {
		m.log.Warn(ctx, "refresh token not cached", "user_id", user.ID)
	}

	out.User = m.view(ctx, user)
	out.AccessToken = access
	out.RefreshToken = refresh
	return out, nil
}

func (m *SessionManager) view(ctx context.Context, u *model.User) UserView {
	v := UserView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Address:     u.Address,
		Photo:       u.Photo,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	if u.PhoneCiphertext != "" && m.sealer != nil {
		phone, err := m.sealer.Open(cryptox.Payload{Version: u.PhoneKeyVersion, Ciphertext: u.PhoneCiphertext})
		if err != nil {
			m.log.Warn(ctx, "failed to decrypt phone", "user_id", u.ID, "error", err)
		} else {
			v.Phone = phone
		}
	}
	return v
}

// DBにはrefreshトークンのsha256だけを置く
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// メールチェック
func isValidEmailFormat(email string) bool {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return false
	}
	addr, err := mail.ParseAddress(trimmed)
	return err == nil && addr.Address == trimmed
}
