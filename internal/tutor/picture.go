package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/plastudo/internal/security"
)

// maxPictureSize はプロフィール画像の最大サイズ（2MB）。
const maxPictureSize = 2 * 1024 * 1024

// defaultPictureTimeout はプロフィール画像取得のデフォルトタイムアウト。
const defaultPictureTimeout = 5 * time.Second

// ErrPictureRejected は画像URLまたは取得結果が受け付けられないことを示す。
var ErrPictureRejected = errors.New("profile picture rejected")

// PictureFetcher はプロフィール画像を取得するインターフェース。
type PictureFetcher interface {
	// Fetch は画像を取得し、バイナリとMIMEタイプを返す。
	Fetch(ctx context.Context, pictureURL string) (data []byte, mimeType string, err error)
}

// HTTPPictureFetcher はSSRF対策済みのHTTPクライアントで画像を取得する。
type HTTPPictureFetcher struct {
	guard  security.SSRFGuard
	client *http.Client
}

// NewHTTPPictureFetcher はHTTPPictureFetcherを生成する。timeoutが0以下の場合は5秒。
func NewHTTPPictureFetcher(guard security.SSRFGuard, timeout time.Duration) *HTTPPictureFetcher {
	if timeout <= 0 {
		timeout = defaultPictureTimeout
	}
	return &HTTPPictureFetcher{
		guard:  guard,
		client: guard.NewSafeClient(timeout),
	}
}

// Fetch は画像を取得する。
// URL検証失敗・2xx以外・2MB超過・画像以外のContent-TypeはErrPictureRejectedを返す。
func (f *HTTPPictureFetcher) Fetch(ctx context.Context, pictureURL string) ([]byte, string, error) {
	if err := f.guard.ValidateURL(pictureURL); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrPictureRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pictureURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrPictureRejected, err)
	}
	req.Header.Set("User-Agent", "Plastudo/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch picture: %w", err)
	}
	defer resp.Body.Close()

	return readPicture(resp)
}

// readPicture はレスポンスから画像を読み込む。
func readPicture(resp *http.Response) ([]byte, string, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: unexpected status %d", ErrPictureRejected, resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		return nil, "", fmt.Errorf("%w: content type %q is not an image", ErrPictureRejected, mimeType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPictureSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read picture: %w", err)
	}
	if len(body) > maxPictureSize {
		return nil, "", fmt.Errorf("%w: picture exceeds %d bytes", ErrPictureRejected, maxPictureSize)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrPictureRejected)
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(mediaType))
}

// isImageMime はプロフィール画像として配信できるMIMEタイプかを判定する。
// SVGはスクリプトを含み得るため受け付けない。
func isImageMime(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

// compile-time interface check
var _ PictureFetcher = (*HTTPPictureFetcher)(nil)
