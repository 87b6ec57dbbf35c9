// Package media stores the audio and image files attached to submissions.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/victornm/bhasha/internal/errors"
)

const (
	KindAudio = "audio"
	KindImage = "image"
)

// Store persists a blob and returns a reference that is saved with the response.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

var extensions = map[string]string{
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/ogg":   ".ogg",
	"audio/webm":  ".webm",
	"audio/mp4":   ".m4a",
	"audio/x-m4a": ".m4a",
	"image/jpeg":  ".jpg",
	"image/jpg":   ".jpg",
	"image/png":   ".png",
	"image/x-png": ".png",
	"image/pjpeg": ".jpg",
}

// Ext returns the file extension for an accepted content type of the given kind.
func Ext(kind, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	ext, ok := extensions[ct]
	if !ok || !strings.HasPrefix(ct, kind+"/") {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithReason("UNSUPPORTED_MEDIA"),
			errors.WithMessagef("unsupported %s type: %q", kind, contentType),
		)
	}

	return ext, nil
}

// Key names an uploaded file {userId}_{promptId}_{unix}[_{i}]{ext}. A negative index omits the suffix.
func Key(userID, promptID string, t time.Time, i int, ext string) string {
	k := fmt.Sprintf("%s_%s_%d", sanitize(userID), sanitize(promptID), t.Unix())
	if i >= 0 {
		k = fmt.Sprintf("%s_%d", k, i)
	}
	return k + ext
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
