package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// StaticFiles serves the frontend from dir for any unmatched GET or HEAD.
func StaticFiles(dir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		method := ctx.Request.Method

		if method != http.MethodGet && method != http.MethodHead {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		file := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+ctx.Request.URL.Path)))

		info, err := os.Stat(file)

		if err == nil && info.IsDir() {
			file = filepath.Join(file, "index.html")
			info, err = os.Stat(file)
		}

		if err != nil || info.IsDir() {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		ctx.File(file)
	}
}
