package middleware

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ethio-home/internal/transport/http/ez"
)

// Uploader 按路由构造并注入，不依赖全局配置
type Uploader struct {
	Dir      string // 保存目录
	Field    string // multipart 字段名
	MaxFiles int
	MaxSize  int64  // 单文件字节数
	Prefix   string // 文件名前缀，如 property / user
}

func PropertyImages(root string) Uploader {
	return Uploader{Dir: filepath.Join(root, "properties"), Field: "images", MaxFiles: 6, MaxSize: 5 << 20, Prefix: "property"}
}

func UserPhoto(root string) Uploader {
	return Uploader{Dir: filepath.Join(root, "users"), Field: "photo", MaxFiles: 1, MaxSize: 2 << 20, Prefix: "user"}
}

// Handle 非 multipart 请求直接放行；保存成功的文件名写入 ez.KeyUploads
func (u Uploader) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			c.Next()
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				ez.Fail(c, &ez.AErr{Code: http.StatusRequestEntityTooLarge, Msg: "Request body too large"})
				return
			}
			ez.Fail(c, ez.BadRequest("Invalid multipart form"))
			return
		}
		files := form.File[u.Field]
		if len(files) > u.MaxFiles {
			ez.Fail(c, ez.BadRequest(fmt.Sprintf("Too many files: at most %d allowed for %s", u.MaxFiles, u.Field)))
			return
		}
		if len(files) == 0 {
			c.Next()
			return
		}
		if err := os.MkdirAll(u.Dir, 0o755); err != nil {
			ez.Fail(c, ez.Internal("create upload dir", err))
			return
		}
		names := make([]string, 0, len(files))
		for _, fh := range files {
			name, err := u.save(c, fh)
			if err != nil {
				u.cleanup(names)
				ez.Fail(c, err)
				return
			}
			names = append(names, name)
		}
		c.Set(ez.KeyUploads, names)
		c.Next()
		// 后续处理失败则删掉已落盘的文件
		if c.Writer.Status() >= 400 {
			u.cleanup(names)
		}
	}
}

func (u Uploader) save(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if fh.Size > u.MaxSize {
		return "", ez.BadRequest(fmt.Sprintf("File %s is too large (max %dMB)", fh.Filename, u.MaxSize>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return "", ez.BadRequest("Cannot read uploaded file")
	}
	mt, err := mimetype.DetectReader(f)
	_ = f.Close()
	if err != nil {
		return "", ez.BadRequest("Cannot read uploaded file")
	}
	if !strings.HasPrefix(mt.String(), "image/") && !strings.HasPrefix(mt.String(), "video/") {
		return "", ez.BadRequest("Not an image or video! Please upload only images or videos.")
	}
	name := fmt.Sprintf("%s-%s%s", u.Prefix, uuid.NewString(), mt.Extension())
	if err := c.SaveUploadedFile(fh, filepath.Join(u.Dir, name)); err != nil {
		return "", ez.Internal("save upload", err)
	}
	return name, nil
}

func (u Uploader) cleanup(names []string) {
	for _, n := range names {
		_ = os.Remove(filepath.Join(u.Dir, n))
	}
}
