// Package contenttype は拡張子からContent-Typeを引く対応表を提供します。
package contenttype

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Fallback は対応表にデフォルトエントリがない場合に使うContent-Type
const Fallback = "application/octet-stream"

// Table は拡張子（先頭の "." を含む）からContent-Typeへの対応表
// 空文字列のキーはどの拡張子にも一致しなかった場合のデフォルト
type Table map[string]string

// Default は標準の対応表を返す
// 呼び出しごとに新しいマップを返すので、呼び出し側で変更してもよい
func Default() Table {
	return Table{
		".manifest": "text/cache-manifest",
		".html":     "text/html",
		".png":      "image/png",
		".jpg":      "image/jpg",
		".svg":      "image/svg+xml",
		".css":      "text/css",
		".js":       "application/x-javascript",
		"":          Fallback,
	}
}

// Lookup はファイル名の拡張子からContent-Typeを返す
// 完全一致、小文字化した拡張子、デフォルトの順に探す
// Validateを通していない対応表でデフォルトがない場合はFallbackを返す
func (t Table) Lookup(name string) string {
	ext := filepath.Ext(name)
	if ct, ok := t[ext]; ok {
		return ct
	}
	if ct, ok := t[strings.ToLower(ext)]; ok {
		return ct
	}
	if ct, ok := t[""]; ok {
		return ct
	}
	return Fallback
}

// Merge はtにotherのエントリを上書きした新しい対応表を返す
func (t Table) Merge(other map[string]string) Table {
	merged := make(Table, len(t)+len(other))
	for ext, ct := range t {
		merged[ext] = ct
	}
	for ext, ct := range other {
		merged[ext] = ct
	}
	return merged
}

// Validate は対応表の妥当性を検証する
func (t Table) Validate() error {
	def, ok := t[""]
	if !ok {
		return fmt.Errorf("デフォルトのContent-Typeがありません")
	}
	if def == "" {
		return fmt.Errorf("デフォルトのContent-Typeが空です")
	}

	for ext, ct := range t {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("無効な拡張子: %q", ext)
		}
		if ct == "" {
			return fmt.Errorf("拡張子 %q のContent-Typeが空です", ext)
		}
	}

	return nil
}
