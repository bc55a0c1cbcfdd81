package rss

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed/atom"
	gorss "github.com/mmcdole/gofeed/rss"
)

const (
	defaultMaxItems   = 20
	maxDescriptionLen = 300
)

// ErrMalformedXML 订阅源内容不是合法的 XML。调用方记录日志后按 0 条处理。
var ErrMalformedXML = errors.New("XML 格式错误")

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`\s+`)
	// 内容已由 Fetcher 转成 UTF-8，声明里的 big5 等编码会导致重复解码。
	xmlEncodingRe = regexp.MustCompile(`^(\s*<\?xml[^>]*?)\s+encoding\s*=\s*["'][^"']*["']`)
)

// Parser 将 RSS 2.0 或 Atom 文本解析为 Item 列表。
type Parser struct {
	maxItems  int
	blacklist []string
}

// NewParser 创建解析器。maxItems 为每个来源最多读取的原始条目数（过采样上限），
// blacklist 中的关键词出现在标题里的条目会被跳过。
func NewParser(maxItems int, blacklist []string) *Parser {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	kws := make([]string, 0, len(blacklist))
	for _, kw := range blacklist {
		// 空关键词会匹配所有标题
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	return &Parser{maxItems: maxItems, blacklist: kws}
}

// Parse 先按 RSS 2.0 提取，没有结果时再按 Atom 提取。
// XML 无法解析时返回 ErrMalformedXML 和空列表。
func (p *Parser) Parse(text string) ([]Item, error) {
	text = xmlEncodingRe.ReplaceAllString(text, "$1")
	if err := checkWellFormed(text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}

	if items := p.parseRSS(text); len(items) > 0 {
		return items, nil
	}
	return p.parseAtom(text), nil
}

func (p *Parser) parseRSS(text string) []Item {
	feed, err := (&gorss.Parser{}).Parse(strings.NewReader(text))
	if err != nil {
		// 根元素不是 rss/rdf，交给 Atom 分支
		return nil
	}

	raw := feed.Items
	if len(raw) > p.maxItems {
		raw = raw[:p.maxItems]
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		title := strings.TrimSpace(it.Title)
		if title == "" || p.blacklisted(title) {
			continue
		}
		items = append(items, Item{
			Title:       title,
			Link:        strings.TrimSpace(it.Link),
			Description: cleanDescription(it.Description),
			RawDate:     strings.TrimSpace(it.PubDate),
			Format:      DateRSS,
		})
	}
	return items
}

func (p *Parser) parseAtom(text string) []Item {
	feed, err := (&atom.Parser{}).Parse(strings.NewReader(text))
	if err != nil {
		return nil
	}

	raw := feed.Entries
	if len(raw) > p.maxItems {
		raw = raw[:p.maxItems]
	}

	items := make([]Item, 0, len(raw))
	for _, e := range raw {
		title := strings.TrimSpace(e.Title)
		if title == "" || p.blacklisted(title) {
			continue
		}
		var link string
		if len(e.Links) > 0 && e.Links[0] != nil {
			link = strings.TrimSpace(e.Links[0].Href)
		}
		date := strings.TrimSpace(e.Published)
		if date == "" {
			date = strings.TrimSpace(e.Updated)
		}
		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: cleanDescription(e.Summary),
			RawDate:     date,
			Format:      DateAtom,
		})
	}
	return items
}

// blacklisted 原样做子串匹配，区分大小写。
func (p *Parser) blacklisted(title string) bool {
	for _, kw := range p.blacklist {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// checkWellFormed 用标准库严格模式扫描一遍，确认是完整的 XML 文档。
func checkWellFormed(text string) error {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = true
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	sawRoot := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			if !sawRoot {
				return errors.New("没有根元素")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
}

// cleanDescription 去掉标签、合并空白并截断到 maxDescriptionLen 个字符。
func cleanDescription(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	return truncate(s, maxDescriptionLen)
}

// truncate 按 UTF-8 字符截断。
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
