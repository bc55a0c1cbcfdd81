package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/dailynews/internal/logger"
)

// Publisher 把报告写入静态站点目录（例如 GitHub Pages 的 reports/）。
type Publisher struct {
	dir     string
	baseURL string
}

// NewPublisher 创建发布器。baseURL 为站点上 dir 对应的地址。
func NewPublisher(dir, baseURL string) *Publisher {
	return &Publisher{dir: dir, baseURL: baseURL}
}

// Published 一次发布的结果。
type Published struct {
	Path string
	URL  string
}

// Publish 写入 <prefix>-YYYY-MM-DD.html，并把 latest 写成跳转到该文件的页面。
func (p *Publisher) Publish(prefix string, now time.Time, page, latest, title string) (Published, error) {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return Published{}, fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := fmt.Sprintf("%s-%s.html", prefix, now.Format("2006-01-02"))
	path := filepath.Join(p.dir, name)
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		return Published{}, fmt.Errorf("写入报告失败: %w", err)
	}

	if latest != "" {
		if err := os.WriteFile(filepath.Join(p.dir, latest), []byte(redirectPage(name, title)), 0644); err != nil {
			return Published{}, fmt.Errorf("写入 %s 失败: %w", latest, err)
		}
	}

	logger.Infof("[report] 报告已保存: %s", path)
	return Published{Path: path, URL: p.baseURL + "/" + name}, nil
}

func redirectPage(target, title string) string {
	target = html.EscapeString(target)
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<meta charset="UTF-8">
<meta http-equiv="refresh" content="0; url=%s">
<title>%s</title>
</head><body>
<p>正在跳轉到最新報告... <a href="%s">點此前往</a></p>
</body></html>`, target, html.EscapeString(title), target)
}
