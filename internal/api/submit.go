package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/bhasha/internal/errors"
	"github.com/victornm/bhasha/internal/media"
	"github.com/victornm/bhasha/internal/session"
	"github.com/victornm/bhasha/internal/submission"
	"github.com/victornm/bhasha/internal/telemetry"
)

func (a *API) SubmitText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalidBody(err))
		return
	}

	ss, ok := a.start(c)
	if !ok {
		return
	}

	res, err := a.subs.SubmitText(c.Request.Context(), ss, submission.TextSubmission{
		PromptID: c.Param("prompt_id"),
		Text:     req.Text,
	})
	a.respond(c, ss, res, err)
}

// SubmitVoice takes either a multipart upload with an "audio" file or a JSON body naming an audio_ref.
func (a *API) SubmitVoice(c *gin.Context) {
	ctx := c.Request.Context()
	promptID := c.Param("prompt_id")

	req := submission.VoiceSubmission{PromptID: promptID}

	multipartBody := isMultipart(c)
	if multipartBody {
		req.AudioRef = c.PostForm("audio_ref")
		req.Description = c.PostForm("description")
		req.DurationSeconds, _ = strconv.ParseFloat(c.PostForm("duration_seconds"), 64)
	} else {
		var body VoiceRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			a.fail(c, invalidBody(err))
			return
		}
		req.AudioRef = body.AudioRef
		req.Description = body.Description
		req.DurationSeconds = body.DurationSeconds
	}

	ss, ok := a.start(c)
	if !ok {
		return
	}

	if multipartBody {
		if fh, err := c.FormFile("audio"); err == nil {
			if err := a.subs.Check(ss, promptID); err != nil {
				a.fail(c, err)
				return
			}

			ext, err := media.Ext(media.KindAudio, fh.Header.Get("Content-Type"))
			if err != nil {
				a.fail(c, err)
				return
			}

			ref, err := a.upload(ctx, fh, media.KindAudio, media.Key(ss.UserID, promptID, a.now(), -1, ext))
			if err != nil {
				a.fail(c, err)
				return
			}
			req.AudioRef = ref
		}
	}

	res, err := a.subs.SubmitVoice(ctx, ss, req)
	a.respond(c, ss, res, err)
}

// SubmitImages takes either a multipart upload with up to five "images" files or a JSON body naming image_refs.
// Uploads only happen once the submission passed every check.
func (a *API) SubmitImages(c *gin.Context) {
	ctx := c.Request.Context()
	promptID := c.Param("prompt_id")

	var (
		req   = submission.ImageSubmission{PromptID: promptID}
		files []*multipart.FileHeader
	)

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			a.fail(c, invalidBody(err))
			return
		}

		files = form.File["images"]
		year, _ := strconv.Atoi(c.PostForm("year"))

		req.Description = c.PostForm("description")
		req.Confirmations = submission.Confirmations{
			Permission: formBool(c.PostForm("permission")),
			Authentic:  formBool(c.PostForm("authentic")),
		}
		req.Metadata = submission.ImageMetadata{
			Location:     c.PostForm("location"),
			Occasion:     c.PostForm("occasion"),
			Year:         year,
			Significance: c.PostForm("significance"),
		}
		for i, fh := range files {
			req.ImageRefs = append(req.ImageRefs, fmt.Sprintf("upload_%d_%s", i, fh.Filename))
		}
	} else {
		var body ImageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			a.fail(c, invalidBody(err))
			return
		}

		req.ImageRefs = body.ImageRefs
		req.Description = body.Description
		req.Confirmations = submission.Confirmations{Permission: body.Permission, Authentic: body.Authentic}
		req.Metadata = submission.ImageMetadata{
			Location:     body.Location,
			Occasion:     body.Occasion,
			Year:         body.Year,
			Significance: body.Significance,
		}
	}

	ss, ok := a.start(c)
	if !ok {
		return
	}

	if len(files) > 0 {
		if err := a.subs.CheckImage(ss, req); err != nil {
			a.fail(c, err)
			return
		}

		exts := make([]string, len(files))
		for i, fh := range files {
			ext, err := media.Ext(media.KindImage, fh.Header.Get("Content-Type"))
			if err != nil {
				a.fail(c, err)
				return
			}
			exts[i] = ext
		}

		now := a.now()
		for i, fh := range files {
			ref, err := a.upload(ctx, fh, media.KindImage, media.Key(ss.UserID, promptID, now, i, exts[i]))
			if err != nil {
				a.fail(c, err)
				return
			}
			req.ImageRefs[i] = ref
		}
	}

	res, err := a.subs.SubmitImage(ctx, ss, req)
	a.respond(c, ss, res, err)
}

func (a *API) respond(c *gin.Context, ss *session.Session, res *submission.Result, err error) {
	if err != nil {
		a.fail(c, err)
		return
	}

	a.ss.Save(c.Request.Context(), ss)

	c.JSON(http.StatusCreated, toSubmissionResult(res))
}

func (a *API) upload(ctx context.Context, fh *multipart.FileHeader, kind, key string) (string, error) {
	if a.media == nil {
		return "", errors.New(errors.CodeUnavailable, errors.WithMessagef("media storage is not configured"))
	}

	f, err := fh.Open()
	if err != nil {
		return "", invalidBody(err)
	}
	defer f.Close()

	ref, err := a.media.Put(ctx, key, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		return "", errors.New(errors.CodeUnavailable,
			errors.WithMessagef("media: upload %s failed", kind),
			errors.WithCause(err),
		)
	}

	telemetry.MediaUploadBytes.WithLabelValues(kind).Observe(float64(fh.Size))

	return ref, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
