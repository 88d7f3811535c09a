package resume

import (
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/interviewman/internal/model"
)

// 抽出結果の信頼度判定のしきい値。
// これを下回る出力はok=falseとなり、同意があれば外部パースに回される。
const (
	minConfidentLength = 40
	minConfidentWords  = 8
)

// ExtractResult は文書からのテキスト抽出結果を表す。
// OKがfalseの場合、抽出自体は成功したが信頼度が低い（短すぎる・語数が少なすぎる）。
type ExtractResult struct {
	OK   bool
	Text string
}

// ExtractDocumentText はアップロードされた文書をプレーンテキストに変換する。
// 対応形式はテキスト（.txt/.md）とHTML（.html/.htm）。
// PDF等のバイナリ形式は対応外としてAPIErrorを返す（外部コラボレータの領分）。
func ExtractDocumentText(filename string, data []byte) (ExtractResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	switch ext {
	case ".txt", ".md", "":
		text = string(data)
	case ".html", ".htm":
		extracted, err := extractHTMLText(string(data))
		if err != nil {
			return ExtractResult{}, err
		}
		text = extracted
	default:
		return ExtractResult{}, model.NewUnsupportedFormatError(filename)
	}

	text = strings.TrimSpace(text)
	return ExtractResult{
		OK:   confident(text),
		Text: text,
	}, nil
}

// extractHTMLText はHTML文書からテキストノードのみを取り出して連結する。
// script/style配下のテキストは除外する。
func extractHTMLText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return b.String(), nil
}

// confident は抽出テキストが信頼に足る分量かを判定する。
func confident(text string) bool {
	if len(text) < minConfidentLength {
		return false
	}
	return len(strings.Fields(text)) >= minConfidentWords
}
