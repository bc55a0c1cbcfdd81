package report

import (
	"regexp"
	"strings"
)

var (
	openFenceRe  = regexp.MustCompile("^```[a-zA-Z]*[ \t]*\n?")
	closeFenceRe = regexp.MustCompile("\n?```\\s*$")
)

// StripFence 去掉模型输出外层的 markdown 代码块标记，例如 ```html 或 ```json。
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = openFenceRe.ReplaceAllString(s, "")
	s = closeFenceRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}
