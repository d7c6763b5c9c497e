package diagnose

import (
	"context"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leaf-diagnosis-server/internal/domain/diagnosis"
	domainimage "leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/platform/errors"
	"leaf-diagnosis-server/internal/platform/logging"
	httptransport "leaf-diagnosis-server/internal/transport/http"
)

// multipartOverhead is headroom over the file cap for boundaries and other fields.
const multipartOverhead = 1 << 20

// fieldNames are the multipart fields an image may arrive under, in lookup order.
var fieldNames = []string{"file", "image"}

// Runner is the orchestrator as seen by the transport.
type Runner interface {
	Run(ctx context.Context, img *domainimage.Image, meta diagnosis.Meta) (*diagnosis.Result, error)
}

type Options struct {
	Images        *domainimage.Pipeline
	Pipeline      Runner
	UploadDir     string
	MaxUploadSize int64
	Logger        *logging.Logger
}

// Service is the HTTP entry point of the diagnosis pipeline.
type Service struct {
	images    *domainimage.Pipeline
	pipeline  Runner
	uploadDir string
	maxUpload int64
	logger    *logging.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Images == nil {
		return nil, errors.New(errors.KindConfig, "diagnose.new", "image pipeline is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New(errors.KindConfig, "diagnose.new", "diagnosis pipeline is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindConfig, "diagnose.new", "cannot create upload dir", err)
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 << 20
	}

	return &Service{
		images:    opts.Images,
		pipeline:  opts.Pipeline,
		uploadDir: opts.UploadDir,
		maxUpload: opts.MaxUploadSize,
		logger:    opts.Logger,
	}, nil
}

// Register mounts the endpoint under the API group and the frontend's legacy path on root.
func (s *Service) Register(api *gin.RouterGroup, root gin.IRouter) {
	api.POST("/diagnose", s.handleDiagnose)
	root.POST("/segmentation/ai-pipeline", s.handleDiagnose)
	s.logger.InfoTag("HTTP", "diagnosis routes registered")
}

// handleDiagnose
// @Summary Diagnose a leaf image
// @Tags Diagnosis
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Leaf image (field name file or image)"
// @Success 200 {object} diagnosis.Result
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /api/diagnose [post]
func (s *Service) handleDiagnose(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			httptransport.RespondFailure(c, errors.New(errors.KindInvalidImage, "diagnose.upload", "Uploaded file is too large"))
			return
		}
		httptransport.RespondFailure(c, errors.Wrap(errors.KindMissingInput, "diagnose.upload", "No file uploaded", err))
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			s.logger.WarnTag("HTTP", "failed to remove multipart temp files: %v", err)
		}
	}()

	header := pickFile(form)
	if header == nil {
		httptransport.RespondFailure(c, errors.New(errors.KindMissingInput, "diagnose.upload", "No file uploaded"))
		return
	}
	// parts with an empty filename land in form.Value, so only blank names reach this
	if strings.TrimSpace(header.Filename) == "" {
		httptransport.RespondFailure(c, errors.New(errors.KindMissingInput, "diagnose.upload", "No file selected"))
		return
	}

	result, err := s.diagnose(c.Request.Context(), header)
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}

	c.Header(httptransport.DiagnosisIDHeader, result.ID)
	c.JSON(http.StatusOK, result)
}

// diagnose stages the upload on disk for the duration of the run only.
func (s *Service) diagnose(ctx context.Context, header *multipart.FileHeader) (*diagnosis.Result, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	if err := saveUpload(header, path); err != nil {
		return nil, errors.Wrap(errors.KindPlatform, "diagnose.save", "Failed to store upload", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.WarnTag("HTTP", "failed to remove upload %s: %v", path, err)
		}
	}()

	img, _, err := s.images.ProcessFile(ctx, path, strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}
	return s.pipeline.Run(ctx, img, diagnosis.Meta{Filename: filepath.Base(header.Filename)})
}

func pickFile(form *multipart.Form) *multipart.FileHeader {
	for _, name := range fieldNames {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func saveUpload(header *multipart.FileHeader, dst string) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
