package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"speechgen/internal/app/speech"
	"speechgen/pkg/slg"

	"github.com/go-chi/chi/v5"
)

const (
	// room for the text and language fields on top of the upload itself
	formSlack = 1 << 20

	multipartMemory = 1 << 20
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type generateResponse struct {
	AudioFile       string  `json:"audio_file"`
	SpectrogramFile *string `json:"spectrogram_file"`
}

type healthModels struct {
	TTS         string `json:"tts"`
	Spectrogram string `json:"spectrogram"`
}

type healthResponse struct {
	Status string       `json:"status"`
	Device string       `json:"device"`
	Models healthModels `json:"models"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, &errorResponse{Detail: detail})
}

func statusOf(err error) int {
	switch speech.ErrKind(err) {
	case speech.KindInvalidInput:
		if errors.Is(err, speech.ErrUploadTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) index(w http.ResponseWriter, r *http.Request) {
	page := createPage(r)
	page.Content = getHtml("index.html", &indexPage{
		Languages:    languages,
		ResponseMode: api.cfg.ResponseMode,
		MaxUploadMiB: api.maxUploadBytes >> 20,
		Device:       api.health.Device,
	})

	submitPage(w, page)
}

func (api *API) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	submitPage(w, errPage(r, http.StatusNotFound, "nothing here"))
}

func (api *API) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &healthResponse{
		Status: "healthy",
		Device: api.health.Device,
		Models: healthModels{
			TTS:         api.health.TTSModel,
			Spectrogram: api.health.SpectrogramModel,
		},
	})
}

// speakerUpload returns the optional reference clip. A file part with no name
// or no content counts as absent, which is what browsers send for an empty input.
func speakerUpload(r *http.Request) (multipart.File, error) {
	file, header, err := r.FormFile("speaker_wav")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	case err != nil:
		return nil, err
	}

	if header.Filename == "" || header.Size == 0 {
		_ = file.Close()
		return nil, nil
	}

	return file, nil
}

func (api *API) generateSpeech(w http.ResponseWriter, r *http.Request) {
	logger := slg.GetSlog(r.Context())

	if api.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadBytes+formSlack)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			writeDetail(w, http.StatusRequestEntityTooLarge, speech.ErrUploadTooLarge.Error())
			return
		}

		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid form: %v", err))

		return
	}

	if r.MultipartForm != nil {
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()
	}

	// body fields only, a ?text= query does not count
	if _, ok := r.PostForm["text"]; !ok {
		writeDetail(w, http.StatusUnprocessableEntity, speech.ErrTextRequired.Error())
		return
	}

	upload, err := speakerUpload(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("speaker_wav: %v", err))
		return
	}

	req := &speech.Request{
		Text:     r.PostFormValue("text"),
		Language: r.PostFormValue("language"),
	}
	if upload != nil {
		defer upload.Close()
		req.Reference = upload
	}

	ctx := r.Context()
	if api.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, api.cfg.Timeout)
		defer cancel()
	}

	res, err := api.gen.Generate(ctx, req)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			logger.Error("speech generation failed", "kind", speech.ErrKind(err).String(), "err", err)
		}

		writeDetail(w, status, err.Error())

		return
	}

	if api.cfg.ResponseMode == ResponseModeFile {
		api.serveAudio(w, r, res)
		return
	}

	resp := &generateResponse{
		AudioFile: res.AudioFile,
	}
	if res.SpectrogramFile != "" {
		resp.SpectrogramFile = &res.SpectrogramFile
	}

	writeJSON(w, http.StatusOK, resp)
}

func (api *API) serveAudio(w http.ResponseWriter, r *http.Request, res *speech.Result) {
	f, err := os.Open(res.AudioPath)
	if err != nil {
		slg.GetSlog(r.Context()).Error("generated audio vanished", "audio_file", res.AudioFile, "err", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())

		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.AudioFile))

	http.ServeContent(w, r, res.AudioFile, info.ModTime(), f)
}

var artifactTypes = map[string]string{
	".wav": "audio/wav",
	".png": "image/png",
}

// generatedAudio serves artifacts by bare file name. Anything that is not a
// plain file directly inside the output dir is a 404.
func (api *API) generatedAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	contentType, ok := artifactTypes[strings.ToLower(filepath.Ext(name))]
	if !ok || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		api.notFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(api.gen.OutputDir(), name))
	if err != nil {
		api.notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		api.notFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)

	http.ServeContent(w, r, name, info.ModTime(), f)
}
