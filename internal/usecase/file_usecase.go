package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"boilerplate/internal/infra/storage"
	"boilerplate/internal/logging"
)

const (
	defaultFolder        = "uploads"
	maxUploadSizeMB      = 5
	defaultBase64SizeMB  = 5
	maxBase64SizeMB      = 10
	defaultPresignExpiry = 3600
	maxPresignExpiry     = 7 * 24 * 3600
)

var allowedMediaTypes = []string{"image/jpeg", "image/png", "image/jpg", "application/pdf"}

var (
	folderPattern   = regexp.MustCompile(`^[A-Za-z0-9_\-]+(/[A-Za-z0-9_\-]+)*$`)
	fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)
	dataURIPattern  = regexp.MustCompile(`(?is)^data:([^;]+);base64,([A-Za-z0-9+/=\s]+)$`)
	base64Pattern   = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// ObjectStoreはstorage.S3Storeが満たす
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expires time.Duration, opts storage.PresignOptions) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (deleted int, failed int, err error)
	PublicURL(key string) string
}

type UploadInput struct {
	Folder      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadOutput struct {
	FileName string `json:"fileName"` // 公開URL
	Folder   string `json:"folder"`
}

type Base64Input struct {
	File      string
	Folder    string
	MaxSizeMB int
}

type PresignOutput struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	Key     string `json:"key"`
}

type FolderDeleteOutput struct {
	Folder  string `json:"folder"`
	Deleted int    `json:"deleted"`
	Failed  int    `json:"failed"`
}

type FileUsecase struct {
	store ObjectStore // nilなら未設定（全部503）
	log   logging.Logger
	now   func() time.Time
}

// DI。storeが無ければnilを渡す。
func NewFileUsecase(store ObjectStore, log logging.Logger) *FileUsecase {
	return &FileUsecase{store: store, log: log, now: time.Now}
}

var errStorageNotConfigured = NewHTTPErrorWithDetail(
	http.StatusServiceUnavailable,
	"S3/MinIO storage is not configured",
	"configure MINIO_ENDPOINT, MINIO_BUCKET_NAME, MINIO_ACCESS_KEY and MINIO_SECRET_KEY",
)

func (u *FileUsecase) Configured() bool {
	return u.store != nil
}

// multipartのアップロード
func (u *FileUsecase) Upload(ctx context.Context, in UploadInput) (UploadOutput, error) {
	if u.store == nil {
		return UploadOutput{}, errStorageNotConfigured
	}
	if in.Body == nil || in.FileName == "" {
		return UploadOutput{}, NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}

	folder, err := normalizeFolder(in.Folder)
	if err != nil {
		return UploadOutput{}, err
	}

	ext := strings.ToLower(path.Ext(in.FileName))
	mediaType := normalizeMediaType(in.ContentType)
	if !isAllowedMediaType(mediaType) && !isAllowedMediaType(extMediaType(ext)) {
		return UploadOutput{}, NewHTTPErrorWithDetail(http.StatusUnsupportedMediaType,
			fmt.Sprintf("File type not allowed: %s", in.ContentType),
			map[string]any{"allowed": allowedMediaTypes})
	}
	if !isAllowedMediaType(mediaType) {
		mediaType = extMediaType(ext)
	}

	maxBytes := int64(maxUploadSizeMB) * 1024 * 1024
	if in.Size > maxBytes {
		return UploadOutput{}, NewHTTPErrorWithDetail(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum %dMB.", maxUploadSizeMB),
			map[string]any{"sizeBytes": in.Size, "maxBytes": maxBytes})
	}

	key := storage.NewObjectKey(folder, ext, u.now())
	if err := u.store.Put(ctx, key, in.Body, in.Size, mediaType); err != nil {
		u.log.Error(ctx, "storage write failed", "key", key, "error", err)
		return UploadOutput{}, NewHTTPError(http.StatusBadGateway, "Failed to store object")
	}
	return UploadOutput{FileName: u.store.PublicURL(key), Folder: folder}, nil
}

// base64（data URIかプレーン）のアップロード。戻り値は公開URL。
func (u *FileUsecase) UploadBase64(ctx context.Context, in Base64Input) (string, error) {
	if u.store == nil {
		return "", errStorageNotConfigured
	}
	raw := strings.TrimSpace(in.File)
	if raw == "" {
		return "", NewHTTPError(http.StatusBadRequest, "No base64 file data provided")
	}

	folder, err := normalizeFolder(in.Folder)
	if err != nil {
		return "", err
	}

	maxMB := in.MaxSizeMB
	if maxMB <= 0 {
		maxMB = defaultBase64SizeMB
	}
	if maxMB > maxBase64SizeMB {
		maxMB = maxBase64SizeMB
	}

	var mediaType, data string
	if m := dataURIPattern.FindStringSubmatch(raw); m != nil {
		mediaType = strings.ToLower(m[1])
		data = m[2]
	} else {
		data = strings.Join(strings.Fields(raw), "")
		if !base64Pattern.MatchString(data) {
			return "", NewHTTPError(http.StatusBadRequest, "Invalid base64 format")
		}
		// プレフィックスが無ければjpeg扱い
		mediaType = "image/jpeg"
	}
	mediaType = normalizeMediaType(mediaType)

	if !isAllowedMediaType(mediaType) {
		return "", NewHTTPErrorWithDetail(http.StatusUnsupportedMediaType,
			fmt.Sprintf("File type not allowed: %s", mediaType),
			map[string]any{"allowed": allowedMediaTypes})
	}

	buf, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(data), ""))
	if err != nil {
		return "", NewHTTPError(http.StatusBadRequest, "Invalid base64 format")
	}

	maxBytes := int64(maxMB) * 1024 * 1024
	if int64(len(buf)) > maxBytes {
		return "", NewHTTPErrorWithDetail(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum %dMB.", maxMB),
			map[string]any{"sizeBytes": len(buf), "maxBytes": maxBytes})
	}

	ext := "." + strings.SplitN(mediaType, "/", 2)[1]
	key := storage.NewObjectKey(folder, ext, u.now())
	if err := u.store.Put(ctx, key, bytes.NewReader(buf), int64(len(buf)), mediaType); err != nil {
		u.log.Error(ctx, "storage write failed", "key", key, "error", err)
		return "", NewHTTPErrorWithDetail(http.StatusBadGateway, "Failed to store object", map[string]any{"storage": "minio/s3"})
	}
	return u.store.PublicURL(key), nil
}

// 署名付きURL。expiresInが0以下なら3600秒。
func (u *FileUsecase) Presign(ctx context.Context, folder, fileName string, expiresIn int) (PresignOutput, error) {
	if u.store == nil {
		return PresignOutput{}, errStorageNotConfigured
	}
	key, err := objectKey(folder, fileName)
	if err != nil {
		return PresignOutput{}, err
	}
	if expiresIn <= 0 {
		expiresIn = defaultPresignExpiry
	}
	if expiresIn > maxPresignExpiry {
		return PresignOutput{}, NewHTTPError(http.StatusBadRequest, "expiresIn must be <= 604800")
	}

	url, err := u.store.PresignGet(ctx, key, time.Duration(expiresIn)*time.Second, storage.PresignOptions{})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PresignOutput{}, NewHTTPError(http.StatusNotFound, "File not found")
		}
		return PresignOutput{}, err
	}
	return PresignOutput{URL: url, ExpiresIn: expiresIn}, nil
}

func (u *FileUsecase) Delete(ctx context.Context, folder, fileName string) (DeleteOutput, error) {
	if u.store == nil {
		return DeleteOutput{}, errStorageNotConfigured
	}
	key, err := objectKey(folder, fileName)
	if err != nil {
		return DeleteOutput{}, err
	}
	if err := u.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DeleteOutput{}, NewHTTPError(http.StatusNotFound, "File not found or already deleted")
		}
		return DeleteOutput{}, err
	}
	return DeleteOutput{Deleted: true, Key: key}, nil
}

// DeleteFolderはfolder配下を全部消す。1件も無ければ404。
func (u *FileUsecase) DeleteFolder(ctx context.Context, folder string) (FolderDeleteOutput, error) {
	if u.store == nil {
		return FolderDeleteOutput{}, errStorageNotConfigured
	}
	// 空のfolderはバケット全体になるので受け付けない
	if strings.Trim(strings.TrimSpace(folder), "/") == "" {
		return FolderDeleteOutput{}, NewHTTPError(http.StatusBadRequest, "invalid folder")
	}
	f, err := normalizeFolder(folder)
	if err != nil {
		return FolderDeleteOutput{}, err
	}

	deleted, failed, err := u.store.DeleteByPrefix(ctx, f)
	if err != nil {
		u.log.Error(ctx, "folder delete failed", "folder", f, "deleted", deleted, "error", err)
		return FolderDeleteOutput{}, NewHTTPErrorWithDetail(http.StatusBadGateway, "Failed to delete folder", map[string]any{"storage": "minio/s3"})
	}
	out := FolderDeleteOutput{Folder: f, Deleted: deleted, Failed: failed}
	if failed > 0 {
		u.log.Warn(ctx, "some objects were not deleted", "folder", f, "deleted", deleted, "failed", failed)
		return out, NewHTTPErrorWithDetail(http.StatusBadGateway, "Failed to delete some objects", out)
	}
	if deleted == 0 {
		return out, NewHTTPError(http.StatusNotFound, "Folder not found or already empty")
	}
	return out, nil
}

func normalizeFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return defaultFolder, nil
	}
	if !folderPattern.MatchString(folder) {
		return "", NewHTTPError(http.StatusBadRequest, "invalid folder")
	}
	return folder, nil
}

func objectKey(folder, fileName string) (string, error) {
	f, err := normalizeFolder(folder)
	if err != nil {
		return "", err
	}
	if !fileNamePattern.MatchString(fileName) || strings.Contains(fileName, "..") {
		return "", NewHTTPError(http.StatusBadRequest, "invalid file name")
	}
	return f + "/" + fileName, nil
}

// jpg → jpeg
func normalizeMediaType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}

func extMediaType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	}
	return ""
}

func isAllowedMediaType(t string) bool {
	for _, a := range allowedMediaTypes {
		if t == a {
			return true
		}
	}
	return false
}
