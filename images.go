package flatpress

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	thumbWidth    = 320
	mediumWidth   = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
)

// processImage decodes an uploaded image and encodes the original plus
// thumbnail and medium variants as JPEG. All formats converge to JPEG so
// variants and caching behave uniformly.
func processImage(src io.Reader, originalName string) (Image, []byte, []byte, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, nil, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	full, err := encodeJPEG(img)
	if err != nil {
		return Image{}, nil, nil, nil, err
	}
	thumb, err := encodeJPEG(scaleToWidth(img, thumbWidth))
	if err != nil {
		return Image{}, nil, nil, nil, err
	}
	medium, err := encodeJPEG(scaleToWidth(img, mediumWidth))
	if err != nil {
		return Image{}, nil, nil, nil, err
	}

	meta := Image{
		Filename:     uploadFilename(),
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         len(full),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	return meta, full, thumb, medium, nil
}

// uploadFilename builds a collision-resistant name from the upload time
// and a random suffix.
func uploadFilename() string {
	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("%d_%s.jpg", time.Now().Unix(), hex.EncodeToString(b[:]))
}

// scaleToWidth downscales img to the given width preserving aspect ratio.
// Images already narrower are returned untouched.
func scaleToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= width {
		return img
	}
	newH := h * width / w
	dst := image.NewRGBA(image.Rect(0, 0, width, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func variantName(filename, variant string) string {
	base := strings.TrimSuffix(filename, ".jpg")
	return base + "_" + variant + ".jpg"
}

func (a *App) handleImageUpload(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, full, thumb, medium, err := processImage(src, file.Filename)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	// Uploads are bucketed by month so a long-lived blog never ends up
	// with one enormous directory.
	subdir := time.Now().UTC().Format("2006-01")
	dir := filepath.Join(a.Config.UploadsDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	for _, f := range []struct {
		name string
		data []byte
	}{
		{img.Filename, full},
		{variantName(img.Filename, "thumb"), thumb},
		{variantName(img.Filename, "medium"), medium},
	} {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
	}

	return a.renderImageList(c)
}

func (a *App) handleImageDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}

	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) {
		return c.String(http.StatusBadRequest, "Filename required")
	}

	// The route carries only the bare filename; locate it across the
	// month buckets and remove it together with its variants.
	dirs, err := os.ReadDir(a.Config.UploadsDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(a.Config.UploadsDir, d.Name())
		if _, err := os.Stat(filepath.Join(dir, filename)); err != nil {
			continue
		}
		os.Remove(filepath.Join(dir, filename))
		os.Remove(filepath.Join(dir, variantName(filename, "thumb")))
		os.Remove(filepath.Join(dir, variantName(filename, "medium")))
		break
	}

	return a.renderImageList(c)
}

func (a *App) handleImageList(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return a.renderImageList(c)
}

func (a *App) renderImageList(c echo.Context) error {
	images, err := a.listImages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminImages(images, CsrfToken(c)))
}

// listImages scans the uploads tree. The filesystem is the source of
// truth; variant files are folded into their original's entry.
func (a *App) listImages() ([]Image, error) {
	var images []Image
	dirs, err := os.ReadDir(a.Config.UploadsDir)
	if os.IsNotExist(err) {
		return images, nil
	}
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(a.Config.UploadsDir, d.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".jpg") {
				continue
			}
			base := strings.TrimSuffix(name, ".jpg")
			if strings.HasSuffix(base, "_thumb") || strings.HasSuffix(base, "_medium") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			img := Image{
				Filename:   name,
				URL:        "/uploads/" + d.Name() + "/" + name,
				Size:       int(info.Size()),
				UploadedAt: info.ModTime().UTC().Format(time.RFC3339),
			}
			if _, err := os.Stat(filepath.Join(dir, variantName(name, "thumb"))); err == nil {
				img.ThumbURL = "/uploads/" + d.Name() + "/" + variantName(name, "thumb")
			}
			if _, err := os.Stat(filepath.Join(dir, variantName(name, "medium"))); err == nil {
				img.MediumURL = "/uploads/" + d.Name() + "/" + variantName(name, "medium")
			}
			if f, err := os.Open(filepath.Join(dir, name)); err == nil {
				if cfg, _, err := image.DecodeConfig(f); err == nil {
					img.Width = cfg.Width
					img.Height = cfg.Height
				}
				f.Close()
			}
			images = append(images, img)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].UploadedAt > images[j].UploadedAt
	})
	return images, nil
}
