package media

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// Intake validates incoming files and turns the accepted ones into media assets.
type Intake struct {
	validator *Validator
	dir       string
}

// NewIntake creates the upload directory if it does not exist.
func NewIntake(cfg config.UploadConfig) (*Intake, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Intake{validator: NewValidator(cfg), dir: cfg.Dir}, nil
}

// AcceptUploads validates multipart files and saves the accepted ones under the upload dir.
// Rejected files are returned alongside; an error means a write failed.
func (in *Intake) AcceptUploads(ctx context.Context, files []*multipart.FileHeader) ([]models.MediaAsset, []*ValidationError, error) {
	var (
		assets   []models.MediaAsset
		rejected []*ValidationError
	)
	for _, fh := range files {
		if err := ctx.Err(); err != nil {
			in.Discard(assets)
			return nil, nil, err
		}
		name := filepath.Base(fh.Filename)
		mimeType, err := in.validator.Validate(name, fh.Size, fh.Header.Get("Content-Type"))
		if err != nil {
			rejected = append(rejected, err.(*ValidationError))
			continue
		}

		asset := models.MediaAsset{
			ID:          uuid.New(),
			DisplayName: name,
			ByteSize:    fh.Size,
			MimeType:    mimeType,
		}
		asset.LocalHandle = filepath.Join(in.dir, asset.ID.String()+strings.ToLower(filepath.Ext(name)))
		if err := save(fh, asset.LocalHandle); err != nil {
			in.Discard(assets)
			return nil, nil, fmt.Errorf("save %s: %w", name, err)
		}
		assets = append(assets, asset)
	}
	return assets, rejected, nil
}

// AcceptPaths validates files already on disk. Accepted assets point at the original path.
func (in *Intake) AcceptPaths(paths []string) ([]models.MediaAsset, []*ValidationError) {
	var (
		assets   []models.MediaAsset
		rejected []*ValidationError
	)
	for _, p := range paths {
		name := filepath.Base(p)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			rejected = append(rejected, &ValidationError{FileName: name, Reason: "not a readable file", Err: err})
			continue
		}
		mimeType, err := in.validator.Validate(name, info.Size(), "")
		if err != nil {
			rejected = append(rejected, err.(*ValidationError))
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		assets = append(assets, models.MediaAsset{
			ID:          uuid.New(),
			DisplayName: name,
			ByteSize:    info.Size(),
			MimeType:    mimeType,
			LocalHandle: abs,
		})
	}
	return assets, rejected
}

// Discard removes saved upload files. Only files inside the upload dir are touched.
func (in *Intake) Discard(assets []models.MediaAsset) {
	for _, a := range assets {
		if filepath.Dir(a.LocalHandle) == filepath.Clean(in.dir) {
			os.Remove(a.LocalHandle)
		}
	}
}

func save(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
