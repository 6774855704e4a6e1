package web

import (
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/voxstudio/internal/studio"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// parseForm reads a multipart or url-encoded body of at most s.maxUpload
// bytes.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return badRequest("parse form: %v", err)
	}
	return nil
}

// cleanupForm removes temporary files of a multipart body.
func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// formReader parses optional form fields and keeps the first error, so a
// handler can read every field and check once.
type formReader struct {
	r   *http.Request
	err error
}

func (f *formReader) value(name string) (string, bool) {
	v := strings.TrimSpace(f.r.FormValue(name))
	return v, v != ""
}

func (f *formReader) float(name string, def float64) float64 {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(x, 0) || math.IsNaN(x) {
		f.err = &studio.ParamError{Field: name, Reason: "must be a number"}
		return def
	}
	return x
}

func (f *formReader) int(name string, def int64) int64 {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Number inputs may submit "42.0".
		fl, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || fl != math.Trunc(fl) || math.Abs(fl) > math.MaxInt64 {
			f.err = &studio.ParamError{Field: name, Reason: "must be an integer"}
			return def
		}
		x = int64(fl)
	}
	return x
}

func (f *formReader) bool(name string, def bool) bool {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	if strings.EqualFold(v, "on") {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		f.err = &studio.ParamError{Field: name, Reason: "must be true or false"}
		return def
	}
	return b
}

// fileHeader returns the first file posted under field, if any.
func fileHeader(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

// saveFile stores the upload under field and returns its path, or "" when
// no file was posted.
func (s *Server) saveFile(r *http.Request, field string) (string, error) {
	fh := fileHeader(r, field)
	if fh == nil {
		return "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", badRequest("open %s: %v", field, err)
	}
	defer f.Close()
	_, path, err := s.store.SaveUpload(f, fh.Filename)
	return path, err
}

// reference resolves the reference clip of a generation form. An uploaded
// file under fileField wins over the sampleField value.
func (s *Server) reference(r *http.Request, fileField, sampleField string) (string, error) {
	path, err := s.saveFile(r, fileField)
	if err != nil || path != "" {
		return path, err
	}
	return s.resolveSample(strings.TrimSpace(r.FormValue(sampleField)))
}

// resolveSample maps a reference_sample value to a file path. The value may
// be an upload reference, a voice id or dropdown label, or a path relative
// to the samples directory. Missing sample files are left to the studio,
// which falls back to the built-in voice.
func (s *Server) resolveSample(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if strings.HasPrefix(v, uploadRefPrefix) {
		path, ok := s.store.UploadPath(v)
		if !ok {
			return "", notFound("upload %q has expired, upload the clip again", v)
		}
		return path, nil
	}
	cat := s.svc.Catalog()
	if voice, ok := cat.ResolveVoice(v); ok {
		return voice.Audio, nil
	}
	rel, err := cleanSamplePath(v)
	if err != nil {
		return "", err
	}
	return cat.AudioPath(rel), nil
}

// cleanSamplePath enforces the allowed-paths rule for the samples
// directory: relative, no parent references, audio extensions only.
func cleanSamplePath(p string) (string, error) {
	fp := filepath.FromSlash(p)
	if !filepath.IsLocal(fp) {
		return "", badRequest("sample path %q is outside the samples directory", p)
	}
	if !allowedAudioExts[strings.ToLower(filepath.Ext(fp))] {
		return "", badRequest("sample path %q is not an audio file", p)
	}
	return filepath.Clean(fp), nil
}
