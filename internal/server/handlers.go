package server

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nocachesrv/internal/contenttype"
)

// StaticHandler はルートディレクトリ配下のファイルを配信する
type StaticHandler struct {
	root         string
	indexFiles   []string
	contentTypes contenttype.Table
}

// NewStaticHandler は新しいStaticHandlerを作成する
// rootは絶対パスであること
func NewStaticHandler(root string, indexFiles []string, contentTypes contenttype.Table) *StaticHandler {
	return &StaticHandler{
		root:         root,
		indexFiles:   indexFiles,
		contentTypes: contentTypes,
	}
}

// Serve はGET/HEADリクエストを処理する
func (h *StaticHandler) Serve(c *gin.Context) {
	urlPath := c.Request.URL.Path

	target, err := resolvePath(h.root, urlPath)
	if err != nil {
		respondError(c, err)
		return
	}

	fi, err := os.Stat(target)
	if err != nil {
		respondError(c, normalizeNotFound(err))
		return
	}

	if fi.IsDir() {
		h.serveDir(c, target, urlPath)
		return
	}

	// ファイルに末尾のスラッシュ付きでアクセスされた
	if strings.HasSuffix(urlPath, "/") || !fi.Mode().IsRegular() {
		respondError(c, ErrNotFound)
		return
	}

	h.serveFile(c, target, fi)
}

// MethodNotAllowed はGET/HEAD以外のメソッドを拒否する
func (h *StaticHandler) MethodNotAllowed(c *gin.Context) {
	c.Header("Allow", "GET, HEAD")
	renderError(c, http.StatusMethodNotAllowed)
}

// serveDir はディレクトリへの要求を処理する
// インデックスファイルがあればそれを返し、なければ一覧を返す
func (h *StaticHandler) serveDir(c *gin.Context, dir, urlPath string) {
	if !strings.HasSuffix(urlPath, "/") {
		// 先頭の連続したスラッシュはまとめて、別ホストへのリダイレクトにならないようにする
		u := url.URL{Path: "/" + strings.TrimLeft(urlPath, "/") + "/", RawQuery: c.Request.URL.RawQuery}
		c.Redirect(http.StatusMovedPermanently, u.String())
		return
	}

	for _, name := range h.indexFiles {
		index := filepath.Join(dir, name)
		fi, err := os.Stat(index)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if err := checkContained(h.root, index); err != nil {
			continue
		}
		h.serveFile(c, index, fi)
		return
	}

	h.serveListing(c, dir, urlPath)
}

// serveFile はファイルの内容をそのまま返す
func (h *StaticHandler) serveFile(c *gin.Context, name string, fi fs.FileInfo) {
	f, err := os.Open(name)
	if err != nil {
		respondError(c, fmt.Errorf("ファイルを開けません: %w", err))
		return
	}
	defer f.Close()

	modtime := fi.ModTime()
	c.Header("Last-Modified", modtime.UTC().Format(http.TimeFormat))

	if notModified(c.Request, modtime) {
		c.Status(http.StatusNotModified)
		c.Writer.WriteHeaderNow()
		return
	}

	c.Header("Content-Type", h.contentTypes.Lookup(name))
	c.Header("Content-Length", strconv.FormatInt(fi.Size(), 10))
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	if c.Request.Method == http.MethodHead {
		return
	}

	// クライアントが切断した場合はコピーが失敗して終わる
	if _, err := io.Copy(c.Writer, f); err != nil {
		_ = c.Error(err)
	}
}

// listingEntry はディレクトリ一覧の1行
type listingEntry struct {
	Href string
	Name string
}

// serveListing はディレクトリ一覧をHTMLで返す
func (h *StaticHandler) serveListing(c *gin.Context, dir, urlPath string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		respondError(c, fmt.Errorf("ディレクトリを読めません: %w", err))
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	items := make([]listingEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		display, link := name, name

		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			// リンク先がディレクトリかどうかはたどって確認する
			if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && fi.IsDir() {
				isDir = true
			}
			display = name + "@"
		} else if isDir {
			display = name + "/"
		}
		if isDir {
			link = name + "/"
		}

		u := url.URL{Path: link}
		items = append(items, listingEntry{Href: u.String(), Name: display})
	}

	var buf bytes.Buffer
	data := struct {
		Path    string
		Entries []listingEntry
	}{urlPath, items}
	if err := listingTmpl.Execute(&buf, data); err != nil {
		respondError(c, fmt.Errorf("ディレクトリ一覧の生成に失敗: %w", err))
		return
	}

	writeBody(c, http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// notModified はIf-Modified-Sinceに対して304を返せるか判定する
// If-None-Matchがある場合は使わない
func notModified(r *http.Request, modtime time.Time) bool {
	if r.Header.Get("If-None-Match") != "" {
		return false
	}
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !modtime.Truncate(time.Second).After(t)
}
