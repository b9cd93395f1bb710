package server

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"
)

// resolvePath はURLパスをルートディレクトリ配下のファイルパスに変換する
//
// ".." でルートより上に出る要求とシンボリックリンクでルートの外を指す要求は
// ErrForbidden で拒否する。対象は開かずに判定する。
func resolvePath(root, urlPath string) (string, error) {
	var segments []string
	for _, seg := range strings.Split(urlPath, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", ErrForbidden
			}
			segments = segments[:len(segments)-1]
			continue
		}
		// OS依存の区切り文字やドライブ指定はここで弾く
		if strings.ContainsAny(seg, "\\\x00") || filepath.VolumeName(seg) != "" {
			return "", ErrForbidden
		}
		segments = append(segments, seg)
	}

	target := filepath.Join(append([]string{root}, segments...)...)
	if err := checkContained(root, target); err != nil {
		return "", err
	}
	return target, nil
}

// checkContained はシンボリックリンクを解決したうえでtargetがroot配下にあるか確認する
func checkContained(root, target string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("ルートディレクトリの解決に失敗: %w", normalizeNotFound(err))
	}
	realTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		return normalizeNotFound(err)
	}

	rel, err := filepath.Rel(realRoot, realTarget)
	if err != nil {
		return ErrForbidden
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrForbidden
	}
	return nil
}

// normalizeNotFound は「存在しない」を意味するエラーをErrNotFoundで包む
func normalizeNotFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
