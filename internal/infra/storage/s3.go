// Package storage はS3互換（MinIO）のオブジェクトストレージ。
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNotConfigured = errors.New("object storage is not configured")
	ErrNotFound      = errors.New("object not found")
)

const (
	connectTimeout = 5 * time.Second
	requestTimeout = 30 * time.Second
	// DeleteObjectsの上限
	deleteBatchSize = 1000
)

type Config struct {
	Endpoint  string
	UseSSL    bool
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

func (c Config) configured() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type ObjectInfo struct {
	Key           string
	ETag          string
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// presigned GETのレスポンスヘッダー上書き
type PresignOptions struct {
	CacheControl       string
	ContentDisposition string
	ContentType        string
}

type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	endpoint string
}

// NewS3Storeはpath-styleのクライアントを作る。4項目が揃わなければErrNotConfigured。
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if !cfg.configured() {
		return nil, ErrNotConfigured
	}
	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	httpClient := awshttp.NewBuildableClient().
		WithTimeout(requestTimeout).
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = connectTimeout
		})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // MinIO
	})

	return &S3Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		endpoint: endpoint,
	}, nil
}

// host:portだけならスキームを付ける。末尾の/は落とす。
func normalizeEndpoint(raw string, useSSL bool) string {
	e := strings.TrimRight(strings.TrimSpace(raw), "/")
	lower := strings.ToLower(e)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if useSSL {
			e = "https://" + e
		} else {
			e = "http://" + e
		}
	}
	return e
}

// PublicURLは {endpoint}/{bucket}/{key}
func (s *S3Store) PublicURL(key string) string {
	return s.endpoint + "/" + s.bucket + "/" + key
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectInfo, error) {
	res, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("head %s: %w", key, err)
	}
	return ObjectInfo{
		Key:           key,
		ETag:          aws.ToString(res.ETag),
		ContentLength: aws.ToInt64(res.ContentLength),
		ContentType:   aws.ToString(res.ContentType),
		LastModified:  aws.ToTime(res.LastModified),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"uploadedBy": "api"},
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PresignGetは存在確認をしてから署名URLを返す。
func (s *S3Store) PresignGet(ctx context.Context, key string, expires time.Duration, opts PresignOptions) (string, error) {
	if _, err := s.Head(ctx, key); err != nil {
		return "", err
	}

	in := &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseCacheControl:       aws.String(orDefault(opts.CacheControl, "public, max-age=31536000, immutable")),
		ResponseContentDisposition: aws.String(orDefault(opts.ContentDisposition, "inline")),
	}
	if opts.ContentType != "" {
		in.ResponseContentType = aws.String(opts.ContentType)
	}

	req, err := s.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Deleteは存在確認してから消す（無ければErrNotFound）。
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if _, err := s.Head(ctx, key); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeleteManyは1000件ずつまとめて消す。失敗したキーは"key: reason"で返す。
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) (deleted []string, failed []string) {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		objs := make([]types.ObjectIdentifier, 0, len(chunk))
		for _, k := range chunk {
			objs = append(objs, types.ObjectIdentifier{Key: aws.String(k)})
		}

		res, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if err != nil {
			for _, k := range chunk {
				failed = append(failed, k+": "+err.Error())
			}
			continue
		}

		// Quietだと成功分は返ってこないので、エラー以外を成功とみなす
		bad := make(map[string]struct{}, len(res.Errors))
		for _, e := range res.Errors {
			k := aws.ToString(e.Key)
			bad[k] = struct{}{}
			failed = append(failed, strings.TrimSpace(fmt.Sprintf("%s: %s %s", k, aws.ToString(e.Code), aws.ToString(e.Message))))
		}
		for _, k := range chunk {
			if _, ng := bad[k]; !ng {
				deleted = append(deleted, k)
			}
		}
	}
	return deleted, failed
}

// DeleteByPrefixはprefix配下をページングしながら全部消す。
func (s *S3Store) DeleteByPrefix(ctx context.Context, prefix string) (deleted int, failed int, err error) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(deleteBatchSize),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, failed, fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			break
		}
		keys := make([]string, 0, len(page.Contents))
		for _, o := range page.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
		ok, ng := s.DeleteMany(ctx, keys)
		deleted += len(ok)
		failed += len(ng)
	}
	return deleted, failed, nil
}

// NewObjectKeyは {folder}/{YYYYMMDD}-{ulid}{ext}
func NewObjectKey(folder, ext string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(folder, now.Format("20060102")+"-"+strings.ToLower(id.String())+strings.ToLower(ext))
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
