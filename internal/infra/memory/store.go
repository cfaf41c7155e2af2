// Package memory はDB_DRIVER=memory用のin-process実装。
// 開発とテスト用で、プロセスが落ちたら全部消える。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"boilerplate/internal/domain/model"
	repo "boilerplate/internal/repository"
)

type Store struct {
	mu     sync.RWMutex
	users  map[string]model.User
	tokens map[string]model.RefreshToken
	logs   []model.RequestLog
	logSeq int64
	audits []model.AuditLog

	// WithinTxを直列化する
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]model.User),
		tokens: make(map[string]model.RefreshToken),
	}
}

func (s *Store) Users() repo.UserRepository                 { return userRepo{s} }
func (s *Store) RefreshTokens() repo.RefreshTokenRepository { return refreshTokenRepo{s} }
func (s *Store) RequestLogs() repo.RequestLogRepository     { return requestLogRepo{s} }
func (s *Store) AuditLogs() repo.AuditLogRepository         { return auditLogRepo{s} }

// WithinTx はスナップショットを取ってfnを実行し、エラーなら戻す。
// Tx外の書き込みと並行した場合、rollbackでそれも巻き戻る。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	users := make(map[string]model.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	tokens := make(map[string]model.RefreshToken, len(s.tokens))
	for k, v := range s.tokens {
		tokens[k] = v
	}
	audits := len(s.audits)
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.users = users
		s.tokens = tokens
		s.audits = s.audits[:audits]
		s.mu.Unlock()
		return err
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repo.ErrEmailTaken
		}
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) FindByID(ctx context.Context, userID string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r userRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.LastLoginAt = &at
	r.s.users[userID] = u
	return nil
}

type refreshTokenRepo struct{ s *Store }

func (r refreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, t := range r.s.tokens {
		if t.TokenHash == token.TokenHash {
			return repo.ErrDuplicateRefreshToken
		}
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.s.tokens[token.ID] = *token
	return nil
}

func (r refreshTokenRepo) FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (*model.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.UserID == userID && t.TokenHash == tokenHash {
			out := t
			return &out, nil
		}
	}
	return nil, repo.ErrRefreshTokenNotFound
}

func (r refreshTokenRepo) DeleteAllByUserID(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r refreshTokenRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, t := range r.s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

type requestLogRepo struct{ s *Store }

func (r requestLogRepo) Create(ctx context.Context, log model.RequestLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.logSeq++
	log.ID = r.s.logSeq
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.s.logs = append(r.s.logs, log)
	return nil
}

func (r requestLogRepo) List(ctx context.Context, filter repo.RequestLogFilter) ([]model.RequestLog, int64, error) {
	r.s.mu.RLock()
	matched := make([]model.RequestLog, 0, len(r.s.logs))
	for _, l := range r.s.logs {
		if matchLog(l, filter) {
			matched = append(matched, l)
		}
	}
	r.s.mu.RUnlock()

	//新しい順
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	limit, offset := repo.NormalizePage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []model.RequestLog{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matchLog(l model.RequestLog, f repo.RequestLogFilter) bool {
	if f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID) {
		return false
	}
	if f.Method != nil && l.Method != *f.Method {
		return false
	}
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

type auditLogRepo struct{ s *Store }

func (r auditLogRepo) Create(ctx context.Context, log model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	log.ID = int64(len(r.s.audits)) + 1
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (r auditLogRepo) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	//新しい順
	out := make([]model.AuditLog, 0, len(r.s.audits))
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		a := r.s.audits[i]
		if filter.ActorUserID != nil && a.ActorUserID != *filter.ActorUserID {
			continue
		}
		if filter.Action != nil && a.Action != *filter.Action {
			continue
		}
		if filter.ResourceType != nil && a.ResourceType != *filter.ResourceType {
			continue
		}
		if filter.ResourceID != nil && a.ResourceID != *filter.ResourceID {
			continue
		}
		if filter.CreatedFrom != nil && a.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && a.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		out = append(out, a)
	}

	limit, offset := repo.NormalizePage(filter.Limit, filter.Offset)
	if offset >= len(out) {
		return []model.AuditLog{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
