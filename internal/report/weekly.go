package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/weekly.html.tmpl
var templateFS embed.FS

var weeklyTmpl = template.Must(template.New("weekly.html.tmpl").
	Funcs(template.FuncMap{"verdictColor": verdictColor}).
	ParseFS(templateFS, "templates/weekly.html.tmpl"))

// WeeklySystemPrompt 週報的角色设定。
const WeeklySystemPrompt = `你是一位在預測市場（Prediction Market）打滾超過 10 年的老司機。

你的背景：
- 你經歷過 Intrade、PredictIt 到現在的 Polymarket 盛世，什麼大風大浪都見過
- 你是個「跨平台獵人」，從 Kalshi 到各種剛冒頭的 DeFi 小站都在你守備範圍內
- 你最討厭廢話和官腔，你只看真實數據和大家的錢包反應
- 你說話犀利、大白話、直言不諱，比起新聞，你更看重「錢流向哪裡」

你的任務是每週以「老手週評」的第一人稱視角，撰寫一份《預測市場週報：老司機的真心話》。
所有輸出皆使用繁體中文。你必須以純 JSON 格式回覆，不要輸出任何其他文字。

【人話翻譯規則，必須遵守】
禁止使用專有術語，一律翻成大白話：
- 「流動性不足」→「沒人玩，買了賣不掉，小心變壁紙」
- 「套利機會」→「這家賣10塊那家賣12塊，兩邊跑穩賺」
- 「深度不夠」→「大單一砸就崩，不適合大戶玩」
- 「OI / Open Interest」→「目前押注總金額」
- 「Slippage」→「下單價和成交價差很多」
- 「做市商」→「幫你找對手盤的中間人」`

// ErrWeeklyIncomplete 週報 JSON 缺少必需字段。
var ErrWeeklyIncomplete = errors.New("週報資料不完整")

// WeeklyVibe 本週大趨勢。
type WeeklyVibe struct {
	Headline string   `json:"headline"`
	Details  []string `json:"details"`
}

// PriceComparison 跨平台比价。
type PriceComparison struct {
	Topic      string `json:"topic"`
	Comparison string `json:"comparison"`
	Verdict    string `json:"verdict"`
}

// SocialNoise 社群风向。
type SocialNoise struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

// Strategy 下週埋伏建議。
type Strategy struct {
	Event   string `json:"event"`
	Signal  string `json:"signal"`
	Verdict string `json:"verdict"`
}

// WeeklyData 模型返回的週報结构。
type WeeklyData struct {
	WeeklyVibe      *WeeklyVibe       `json:"weekly_vibe"`
	PriceComparison []PriceComparison `json:"price_comparison"`
	SocialNoise     []SocialNoise     `json:"social_noise"`
	VeteranStrategy []Strategy        `json:"veteran_strategy"`
}

// WeekRange 返回过去 7 天（含今天）的范围，例如 2026/02/17 ~ 2026/02/23。
func WeekRange(now time.Time) string {
	return fmt.Sprintf("%s ~ %s", now.AddDate(0, 0, -6).Format("2006/01/02"), now.Format("2006/01/02"))
}

// WeeklyPrompt 週報的用户提示词。
func WeeklyPrompt(now time.Time) string {
	return fmt.Sprintf(`幫我寫這週的預測市場週報《老司機的真心話》。今天是 %s，週報涵蓋範圍：%s。

內容必須包含以下四大板塊，以 JSON 格式回覆：

1. weekly_vibe（本週大趨勢）：headline 一句話點破本週市場情緒；details 3~4 條具體觀察。
2. price_comparison（跨平台比價地圖）：掃描 Polymarket、Kalshi、VoteFlux、ForecastEx 等平台，
   列出 3~4 個同題目比價案例，每個包含 topic、comparison、verdict。
3. social_noise（社群風向與鬼故事）：2~3 條社群觀察，每條包含 title、story。
4. veteran_strategy（下週埋伏建議）：3~4 條建議，每條包含 event、signal、verdict，
   verdict 用「可以埋伏」「送錢勿近」「觀望」「死路一條」等直白標籤開頭。

只輸出 JSON，結構如下：
{
  "weekly_vibe": {"headline": "", "details": ["", "", ""]},
  "price_comparison": [{"topic": "", "comparison": "", "verdict": ""}],
  "social_noise": [{"title": "", "story": ""}],
  "veteran_strategy": [{"event": "", "signal": "", "verdict": ""}]
}`, DateLabel(now), WeekRange(now))
}

// ParseWeekly 去掉代码块标记后解析週報 JSON。
func ParseWeekly(raw string) (*WeeklyData, error) {
	var data WeeklyData
	if err := json.Unmarshal([]byte(StripFence(raw)), &data); err != nil {
		return nil, fmt.Errorf("解析週報 JSON 失败: %w", err)
	}
	if data.WeeklyVibe == nil || strings.TrimSpace(data.WeeklyVibe.Headline) == "" {
		return nil, fmt.Errorf("%w: 缺少 weekly_vibe", ErrWeeklyIncomplete)
	}
	return &data, nil
}

// RenderWeekly 把週報资料渲染为完整 HTML 页面。
func RenderWeekly(data *WeeklyData, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := weeklyTmpl.Execute(&buf, struct {
		*WeeklyData
		WeekRange string
		Today     string
		Year      int
	}{data, WeekRange(now), DateLabel(now), now.Year()})
	if err != nil {
		return "", fmt.Errorf("渲染週報失败: %w", err)
	}
	return buf.String(), nil
}

// verdictColor 按建议开头的标签决定颜色。
func verdictColor(verdict string) template.CSS {
	switch {
	case strings.HasPrefix(verdict, "可以埋伏"):
		return "#3fb950"
	case strings.HasPrefix(verdict, "送錢勿近"), strings.HasPrefix(verdict, "死路一條"):
		return "#f85149"
	default:
		return "#d29922"
	}
}
