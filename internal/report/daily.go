package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrRefused 模型没有返回可用的 HTML 页面（拒答或被截断）。
var ErrRefused = errors.New("模型未返回完整 HTML")

const minReportLen = 200

// DailyPrompt 每日戰報的提示词，要求模型直接输出完整 HTML 页面。
func DailyPrompt(now time.Time) string {
	return fmt.Sprintf(`你是一位具備 10 年經驗的「資深預測投注玩家」兼「金融科技戰略分析師」。
你的風格硬核、犀利、注重數據，並對 Web3 與傳統博彩市場有極深洞見。
所有輸出皆使用繁體中文。

現在是 %s，請執行每日戰報（Run Daily Report）。

請嚴格執行以下步驟並直接輸出完整 HTML 代碼：

1. **DAILY DISCOVERY：**
   找出一個除了 Kalshi, Hyperliquid, Predict.fun, Polymarket 之外的「預測投注網站」作為當日隨機競品。
   包含簡述與資深玩家點評。

2. **全球競品深度分析：**
   主體：VoteFlux。
   必列對象：Kalshi, Hyperliquid, Predict.fun, Polymarket, 以及當日隨機競品（共 6 個）。
   站在「職業玩家」角度，分析流動性、費率滑點、以及盤口反應速度。

3. **客服功能評分表：**
   以表格呈現，指標包含：網站內嵌即時對話框客服、即時通訊軟體客服 (如 Telegram)、非即時客服 (如 email)。

4. **戰略行動建議（Action Plan）：**
   結合 Kalshi（合規）、Hyperliquid（Outcome Trading）、Predict.fun（DeFi 生息）三大邏輯，
   為 VoteFlux 提供具體可執行的戰術建議。

5. **目標市場預測題目：**
   針對 6 大市場（印度、孟加拉、越南、馬來西亞、菲律賓、泰國）各提供 2 題當日或當週的熱點預測題目。

**輸出要求：**
- 直接輸出完整可用的 HTML 代碼（包含 <!DOCTYPE html>）
- 深色主題（Dark Mode），背景 #0d1117，文字 #c9d1d9
- 使用 CSS Grid/Flexbox 排版，表格有邊框和 hover 效果
- 頂部要有 VoteFlux 標題和日期
- 不要使用任何外部 CSS/JS 框架，純 HTML+CSS+inline JS
- 不要用 markdown 代碼塊包裹，直接輸出 HTML
`, DateLabel(now))
}

// CheckHTML 检查清理后的模型输出是否像一份完整的 HTML 页面。
func CheckHTML(page string) error {
	page = strings.TrimSpace(page)
	if utf8.RuneCountInString(page) < minReportLen || !strings.HasPrefix(page, "<!") {
		return fmt.Errorf("%w: %q", ErrRefused, preview(page, 200))
	}
	return nil
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
